package filter

import "strings"

// Lookup resolves a dotted path against a document and returns every value
// reached through it. Arrays met along the way are traversed element by
// element and arrays at the leaf are flattened, so "caseLevelData.biosampleId"
// yields one value per case-level entry. exists is false when no element
// carries the path at all.
func Lookup(doc Document, path string) (values []any, exists bool) {
	if path == "" || doc == nil {
		return nil, false
	}
	return lookupParts(map[string]any(doc), strings.Split(path, "."))
}

func lookupParts(cur any, parts []string) ([]any, bool) {
	if len(parts) == 0 {
		if arr := toSlice(cur); arr != nil {
			return append([]any{}, arr...), true
		}
		return []any{cur}, true
	}

	if arr := toSlice(cur); arr != nil {
		var out []any
		found := false
		for _, elem := range arr {
			vals, ok := lookupParts(elem, parts)
			if ok {
				found = true
				out = append(out, vals...)
			}
		}
		return out, found
	}

	m, ok := toMap(cur)
	if !ok {
		return nil, false
	}
	next, ok := m[parts[0]]
	if !ok {
		return nil, false
	}
	return lookupParts(next, parts[1:])
}

// Project returns a copy of doc holding only the given dotted paths, keeping
// the nesting of the source document. Array elements that lack the path are
// kept as empty documents, mirroring store-side projections.
func Project(doc Document, paths []string) Document {
	if len(paths) == 0 {
		return doc
	}
	var out any = map[string]any{}
	for _, path := range paths {
		if path == "" {
			continue
		}
		v, ok := projectValue(map[string]any(doc), strings.Split(path, "."))
		if !ok {
			continue
		}
		out = mergeValue(out, v)
	}
	m, _ := toMap(out)
	return Document(m)
}

func projectValue(src any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return src, true
	}

	if arr := toSlice(src); arr != nil {
		out := make([]any, 0, len(arr))
		for _, elem := range arr {
			v, ok := projectValue(elem, parts)
			if !ok {
				if _, isMap := toMap(elem); isMap {
					out = append(out, map[string]any{})
				}
				continue
			}
			out = append(out, v)
		}
		return out, true
	}

	m, ok := toMap(src)
	if !ok {
		return nil, false
	}
	next, ok := m[parts[0]]
	if !ok {
		return nil, false
	}
	v, ok := projectValue(next, parts[1:])
	if !ok {
		return nil, false
	}
	return map[string]any{parts[0]: v}, true
}

func mergeValue(dst, src any) any {
	dm, dOK := toMap(dst)
	sm, sOK := toMap(src)
	if dOK && sOK {
		for k, v := range sm {
			if existing, ok := dm[k]; ok {
				dm[k] = mergeValue(existing, v)
			} else {
				dm[k] = v
			}
		}
		return dm
	}

	da, sa := toSlice(dst), toSlice(src)
	if da != nil && sa != nil && len(da) == len(sa) {
		for i := range da {
			da[i] = mergeValue(da[i], sa[i])
		}
		return da
	}
	return src
}
