package filter

import (
	"errors"
	"fmt"
)

// ClauseOperator is the operator of a request-level filter clause.
type ClauseOperator string

// Clause operators
const (
	Equal        ClauseOperator = "EQUAL"
	InList       ClauseOperator = "IN"
	GreaterEqual ClauseOperator = "GREATER_EQUAL"
	LessEqual    ClauseOperator = "LESS_EQUAL"
	Greater      ClauseOperator = "GREATER"
	Less         ClauseOperator = "LESS"
	NotEqual     ClauseOperator = "NOT"
)

// ErrUnmappedClause is returned when a clause reaches the predicate tree
// without a storage path.
var ErrUnmappedClause = errors.New("clause has no storage field")

// Clause is a field-level condition before it is turned into a predicate.
type Clause struct {
	Field    string
	Operator ClauseOperator
	Values   []any
}

// ToFilter converts the clause into a predicate node.
// EQUAL with several values becomes a membership test.
func (c Clause) ToFilter() (*Filter, error) {
	if c.Field == "" {
		return nil, ErrUnmappedClause
	}
	if len(c.Values) == 0 {
		return nil, fmt.Errorf("clause on %q has no values", c.Field)
	}

	switch c.Operator {
	case Equal:
		if len(c.Values) == 1 {
			return Eq(c.Field, c.Values[0]), nil
		}
		return In(c.Field, c.Values...), nil
	case InList:
		return In(c.Field, c.Values...), nil
	case NotEqual:
		if len(c.Values) == 1 {
			return Nor(Eq(c.Field, c.Values[0])), nil
		}
		return Nor(In(c.Field, c.Values...)), nil
	case GreaterEqual:
		return Gte(c.Field, c.Values[0]), nil
	case LessEqual:
		return Lte(c.Field, c.Values[0]), nil
	case Greater:
		return Gt(c.Field, c.Values[0]), nil
	case Less:
		return Lt(c.Field, c.Values[0]), nil
	default:
		return nil, fmt.Errorf("unsupported clause operator %q on %q", c.Operator, c.Field)
	}
}

func (c Clause) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Values)
}
