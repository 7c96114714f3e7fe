// Package filter provides the predicate tree evaluated against beacon documents.
//
// A predicate is a flat conjunction of field-level clauses:
//   - Boolean operators: And (all children), Nor (no child matches)
//   - Comparisons: Eq, In, Lt, Lte, Gt, Gte against a dotted document path
//   - Text: full-text search over every string value of the document
//
// Paths such as "caseLevelData.biosampleId" traverse nested documents and
// arrays the way the document store does: a clause matches when any value
// reached through the path satisfies it.
package filter

import (
	"fmt"
	"strings"
)

// Operator represents a predicate operator.
type Operator string

// Boolean operators
const (
	OpAnd Operator = "And"
	OpNor Operator = "Nor"
)

// Comparison operators
const (
	OpEq  Operator = "Eq"
	OpIn  Operator = "In"
	OpLt  Operator = "Lt"
	OpLte Operator = "Lte"
	OpGt  Operator = "Gt"
	OpGte Operator = "Gte"
)

// OpText is the full-text search operator.
const OpText Operator = "Text"

// IDField is the store-assigned document identifier.
const IDField = "_id"

// IsBooleanOp returns true if the operator combines child predicates.
func (o Operator) IsBooleanOp() bool {
	return o == OpAnd || o == OpNor
}

// IsComparisonOp returns true if the operator compares a path against a value.
func (o Operator) IsComparisonOp() bool {
	switch o {
	case OpEq, OpIn, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Filter represents a predicate node.
type Filter struct {
	// For boolean operators (And, Nor)
	Op       Operator
	Children []*Filter

	// For comparison operators; Value is a []any for In and the search
	// phrase for Text.
	Attr  string
	Value any
}

// Document represents a stored record.
type Document map[string]any

// And returns a conjunction of the given children.
func And(children ...*Filter) *Filter {
	return &Filter{Op: OpAnd, Children: append([]*Filter{}, children...)}
}

// Nor returns a predicate matching documents that match none of the children.
func Nor(children ...*Filter) *Filter {
	return &Filter{Op: OpNor, Children: append([]*Filter{}, children...)}
}

// Eq returns an equality clause.
func Eq(attr string, value any) *Filter {
	return &Filter{Op: OpEq, Attr: attr, Value: value}
}

// In returns a membership clause. An empty value list matches nothing.
func In(attr string, values ...any) *Filter {
	return &Filter{Op: OpIn, Attr: attr, Value: append([]any{}, values...)}
}

// Lt returns a strict upper bound clause.
func Lt(attr string, value any) *Filter { return &Filter{Op: OpLt, Attr: attr, Value: value} }

// Lte returns an inclusive upper bound clause.
func Lte(attr string, value any) *Filter { return &Filter{Op: OpLte, Attr: attr, Value: value} }

// Gt returns a strict lower bound clause.
func Gt(attr string, value any) *Filter { return &Filter{Op: OpGt, Attr: attr, Value: value} }

// Gte returns an inclusive lower bound clause.
func Gte(attr string, value any) *Filter { return &Filter{Op: OpGte, Attr: attr, Value: value} }

// Text returns a full-text search clause.
func Text(phrase string) *Filter {
	return &Filter{Op: OpText, Value: phrase}
}

// Append adds children to an And node in place and returns it.
// Appending to a nil filter starts a new conjunction.
func (f *Filter) Append(children ...*Filter) *Filter {
	if f == nil {
		return And(children...)
	}
	if f.Op != OpAnd {
		wrapped := *f
		f.Op = OpAnd
		f.Attr = ""
		f.Value = nil
		f.Children = []*Filter{&wrapped}
	}
	for _, child := range children {
		if child != nil {
			f.Children = append(f.Children, child)
		}
	}
	return f
}

// IsEmpty returns true if the filter places no constraint on documents.
func (f *Filter) IsEmpty() bool {
	if f == nil {
		return true
	}
	if f.Op != OpAnd {
		return false
	}
	for _, child := range f.Children {
		if !child.IsEmpty() {
			return false
		}
	}
	return true
}

// Len returns the number of direct children of a boolean node, or 1 for a clause.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	if f.Op.IsBooleanOp() {
		return len(f.Children)
	}
	return 1
}

// Clone returns a deep copy of the filter tree. Clause values are shared.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	out := &Filter{Op: f.Op, Attr: f.Attr, Value: f.Value}
	if values, ok := f.Value.([]any); ok {
		out.Value = append([]any{}, values...)
	}
	if f.Children != nil {
		out.Children = make([]*Filter, len(f.Children))
		for i, child := range f.Children {
			out.Children[i] = child.Clone()
		}
	}
	return out
}

// Validate checks the structural invariants of the tree: every clause
// names a path and every In clause carries a value list.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	switch {
	case f.Op.IsBooleanOp():
		for i, child := range f.Children {
			if child == nil {
				return fmt.Errorf("%s child %d is nil", f.Op, i)
			}
			if err := child.Validate(); err != nil {
				return err
			}
		}
	case f.Op.IsComparisonOp():
		if f.Attr == "" {
			return fmt.Errorf("%s clause has no field", f.Op)
		}
		if f.Op == OpIn {
			if _, ok := f.Value.([]any); !ok {
				return fmt.Errorf("In clause on %q requires a value list, got %T", f.Attr, f.Value)
			}
		}
	case f.Op == OpText:
		if _, ok := f.Value.(string); !ok {
			return fmt.Errorf("Text clause requires a string phrase, got %T", f.Value)
		}
	default:
		return fmt.Errorf("unknown operator: %s", f.Op)
	}
	return nil
}

// String renders the filter for logs.
func (f *Filter) String() string {
	if f == nil {
		return "<all>"
	}
	switch {
	case f.Op.IsBooleanOp():
		parts := make([]string, len(f.Children))
		for i, child := range f.Children {
			parts[i] = child.String()
		}
		return fmt.Sprintf("%s(%s)", f.Op, strings.Join(parts, ", "))
	case f.Op == OpText:
		return fmt.Sprintf("Text(%q)", f.Value)
	default:
		return fmt.Sprintf("%s %s %v", f.Attr, f.Op, f.Value)
	}
}

// Eval evaluates the filter against a document.
// Returns true if the document matches the filter.
func (f *Filter) Eval(doc Document) bool {
	if f == nil {
		return true // nil filter matches everything
	}

	switch f.Op {
	case OpAnd:
		return f.evalAnd(doc)
	case OpNor:
		return f.evalNor(doc)
	case OpEq:
		return f.evalEq(doc)
	case OpIn:
		return f.evalIn(doc)
	case OpLt:
		return f.evalComparison(doc, -1, false)
	case OpLte:
		return f.evalComparison(doc, -1, true)
	case OpGt:
		return f.evalComparison(doc, 1, false)
	case OpGte:
		return f.evalComparison(doc, 1, true)
	case OpText:
		return f.evalText(doc)
	default:
		return false
	}
}

func (f *Filter) evalAnd(doc Document) bool {
	for _, child := range f.Children {
		if !child.Eval(doc) {
			return false
		}
	}
	return true
}

func (f *Filter) evalNor(doc Document) bool {
	for _, child := range f.Children {
		if child.Eval(doc) {
			return false
		}
	}
	return true
}

func (f *Filter) evalEq(doc Document) bool {
	values, exists := Lookup(doc, f.Attr)

	// Eq null matches missing attribute
	if f.Value == nil {
		return !exists || containsNil(values)
	}

	for _, v := range values {
		if valuesEqual(v, f.Value) {
			return true
		}
	}
	return false
}

func (f *Filter) evalIn(doc Document) bool {
	wanted, ok := f.Value.([]any)
	if !ok || len(wanted) == 0 {
		return false
	}

	values, _ := Lookup(doc, f.Attr)
	for _, v := range values {
		for _, w := range wanted {
			if valuesEqual(v, w) {
				return true
			}
		}
	}
	return false
}

// evalComparison evaluates Lt, Lte, Gt, Gte.
// direction: -1 for Lt/Lte, 1 for Gt/Gte
// orEqual: true for Lte/Gte
func (f *Filter) evalComparison(doc Document, direction int, orEqual bool) bool {
	values, _ := Lookup(doc, f.Attr)
	for _, v := range values {
		cmp, ok := compareValues(v, f.Value)
		if !ok {
			continue
		}
		if cmp == 0 && orEqual {
			return true
		}
		if cmp == direction {
			return true
		}
	}
	return false
}

func containsNil(values []any) bool {
	for _, v := range values {
		if v == nil {
			return true
		}
	}
	return false
}

// UsedAttributes returns a list of all attribute names used in the filter.
func (f *Filter) UsedAttributes() []string {
	if f == nil {
		return nil
	}

	seen := make(map[string]bool)
	var attrs []string
	f.collectAttributes(seen, &attrs)
	return attrs
}

// collectAttributes recursively collects attribute names in first-use order.
func (f *Filter) collectAttributes(seen map[string]bool, attrs *[]string) {
	if f == nil {
		return
	}

	if f.Op.IsBooleanOp() {
		for _, child := range f.Children {
			child.collectAttributes(seen, attrs)
		}
		return
	}
	if f.Attr != "" && !seen[f.Attr] {
		seen[f.Attr] = true
		*attrs = append(*attrs, f.Attr)
	}
}
