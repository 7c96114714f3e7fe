// Package mapping holds the association between the filter keys accepted by
// the variant endpoints and the document paths they constrain.
package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind describes how a key is compiled.
type Kind int

const (
	// Equality keys compile to a single equality or membership clause.
	Equality Kind = iota
	// RangeFrom keys are lower-anchored coordinates (genomic start).
	RangeFrom
	// RangeTo keys are upper-anchored coordinates (genomic end).
	RangeTo
	// Reserved keys are accepted but have no storage representation.
	Reserved
)

func (k Kind) String() string {
	switch k {
	case Equality:
		return "equality"
	case RangeFrom:
		return "range-from"
	case RangeTo:
		return "range-to"
	case Reserved:
		return "reserved"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry maps one external key. Path is empty exactly when Kind is Reserved.
type Entry struct {
	Key  string
	Path string
	Kind Kind
}

// Representable reports whether the key can produce a predicate.
func (e Entry) Representable() bool {
	return e.Kind != Reserved && e.Path != ""
}

// ErrIncompleteTable is returned when a table does not cover its key set.
var ErrIncompleteTable = errors.New("incomplete field mapping table")

// Table is an immutable key to path lookup. It is safe for concurrent use.
type Table struct {
	entries map[string]Entry
	keys    []string
}

// New builds a table and checks it against the set of filterable keys:
// every filterable key needs an entry, every entry must be filterable and
// only reserved entries may lack a path.
func New(entries []Entry, filterableKeys []string) (*Table, error) {
	t := &Table{entries: make(map[string]Entry, len(entries))}

	for _, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("%w: entry with empty key", ErrIncompleteTable)
		}
		if _, dup := t.entries[e.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrIncompleteTable, e.Key)
		}
		if e.Kind == Reserved && e.Path != "" {
			return nil, fmt.Errorf("%w: reserved key %q has path %q", ErrIncompleteTable, e.Key, e.Path)
		}
		if e.Kind != Reserved && e.Path == "" {
			return nil, fmt.Errorf("%w: key %q has no path", ErrIncompleteTable, e.Key)
		}
		t.entries[e.Key] = e
		t.keys = append(t.keys, e.Key)
	}
	sort.Strings(t.keys)

	filterable := make(map[string]struct{}, len(filterableKeys))
	var missing []string
	for _, k := range filterableKeys {
		filterable[k] = struct{}{}
		if _, ok := t.entries[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: no entry for %s", ErrIncompleteTable, strings.Join(missing, ", "))
	}
	for _, k := range t.keys {
		if _, ok := filterable[k]; !ok {
			return nil, fmt.Errorf("%w: key %q is not filterable", ErrIncompleteTable, k)
		}
	}
	return t, nil
}

// MustNew is like New but panics on an invalid table. Used for package-level tables.
func MustNew(entries []Entry, filterableKeys []string) *Table {
	t, err := New(entries, filterableKeys)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the entry for key. ok is false for unknown keys.
func (t *Table) Lookup(key string) (Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Path returns the storage path for key, or "" when the key is unknown or reserved.
func (t *Table) Path(key string) string {
	return t.entries[key].Path
}

// Keys returns the mapped keys in sorted order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of mapped keys.
func (t *Table) Len() int {
	return len(t.keys)
}
