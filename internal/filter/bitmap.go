package filter

import (
	"github.com/RoaringBitmap/roaring"
)

// MatchRows evaluates the filter against each row and returns a bitmap of the
// matching row positions.
func (f *Filter) MatchRows(rows []Document) *roaring.Bitmap {
	bm := roaring.New()
	for i, row := range rows {
		if f.Eval(row) {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// PageRows returns the row positions of bm after skipping skip matches,
// capped at limit entries. A limit of zero or less returns every remaining
// match.
func PageRows(bm *roaring.Bitmap, skip, limit int) []uint32 {
	if bm == nil || bm.IsEmpty() {
		return nil
	}
	if skip < 0 {
		skip = 0
	}

	var out []uint32
	it := bm.Iterator()
	for i := 0; it.HasNext(); i++ {
		row := it.Next()
		if i < skip {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, row)
	}
	return out
}
