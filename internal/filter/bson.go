package filter

import (
	"go.mongodb.org/mongo-driver/bson"
)

// ToBSON renders the filter as a MongoDB query document.
//
// Empty conjunctions and empty Nor nodes render as an empty document: the
// server rejects "$and"/"$nor" with an empty array, and both mean "no
// constraint" here.
func (f *Filter) ToBSON() bson.D {
	if f == nil {
		return bson.D{}
	}

	switch f.Op {
	case OpAnd, OpNor:
		children := make(bson.A, 0, len(f.Children))
		for _, child := range f.Children {
			if f.Op == OpAnd && child.IsEmpty() {
				continue
			}
			children = append(children, child.ToBSON())
		}
		if len(children) == 0 {
			return bson.D{}
		}
		key := "$and"
		if f.Op == OpNor {
			key = "$nor"
		}
		return bson.D{{Key: key, Value: children}}
	case OpEq:
		return bson.D{{Key: f.Attr, Value: f.Value}}
	case OpIn:
		values, _ := f.Value.([]any)
		return bson.D{{Key: f.Attr, Value: bson.D{{Key: "$in", Value: bson.A(append([]any{}, values...))}}}}
	case OpLt:
		return bson.D{{Key: f.Attr, Value: bson.D{{Key: "$lt", Value: f.Value}}}}
	case OpLte:
		return bson.D{{Key: f.Attr, Value: bson.D{{Key: "$lte", Value: f.Value}}}}
	case OpGt:
		return bson.D{{Key: f.Attr, Value: bson.D{{Key: "$gt", Value: f.Value}}}}
	case OpGte:
		return bson.D{{Key: f.Attr, Value: bson.D{{Key: "$gte", Value: f.Value}}}}
	case OpText:
		return bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: f.Value}}}}
	default:
		return bson.D{}
	}
}
