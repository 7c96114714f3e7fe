// Package catalog reads the pre-populated filtering terms collection.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/storage"
)

// ErrTermNotFound is returned when a term is absent from the catalog.
var ErrTermNotFound = errors.New("filtering term not found")

// Term is one catalog entry.
type Term struct {
	Type        string   `json:"type"`
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	Count       int64    `json:"count"`
	Collection  string   `json:"collection"`
	Field       string   `json:"field,omitempty"`
	Descendants []string `json:"descendants,omitempty"`
}

// Catalog resolves and lists filtering terms.
type Catalog struct {
	store storage.Store
}

func New(store storage.Store) *Catalog {
	return &Catalog{store: store}
}

// LookupTerm returns the term id as catalogued for collection.
func (c *Catalog) LookupTerm(ctx context.Context, id, collection string) (Term, error) {
	pred := filter.And(filter.Eq("id", id), filter.Eq("collection", collection))
	doc, err := c.store.FindOne(ctx, storage.CollectionFilteringTerms, pred, nil)
	if errors.Is(err, storage.ErrNotFound) {
		return Term{}, fmt.Errorf("%w: %s in %s", ErrTermNotFound, id, collection)
	}
	if err != nil {
		return Term{}, err
	}
	return TermFromDocument(doc), nil
}

// List returns a page of the terms catalogued for collection and their total count.
func (c *Catalog) List(ctx context.Context, collection string, skip, limit int) (int64, []filter.Document, error) {
	pred := filter.Eq("collection", collection)
	count, err := c.store.Count(ctx, storage.CollectionFilteringTerms, pred)
	if err != nil {
		return 0, nil, err
	}
	docs, err := c.store.Find(ctx, storage.CollectionFilteringTerms, pred, storage.FindOptions{Skip: skip, Limit: limit})
	if err != nil {
		return 0, nil, err
	}
	return count, docs, nil
}

// TermFromDocument reads a catalog document. Unknown or mistyped fields are ignored.
func TermFromDocument(doc filter.Document) Term {
	t := Term{
		Type:       stringField(doc, "type"),
		ID:         stringField(doc, "id"),
		Label:      stringField(doc, "label"),
		Collection: stringField(doc, "collection"),
		Field:      stringField(doc, "field"),
	}
	switch n := doc["count"].(type) {
	case int:
		t.Count = int64(n)
	case int32:
		t.Count = int64(n)
	case int64:
		t.Count = n
	case float64:
		t.Count = int64(n)
	}
	switch d := doc["descendants"].(type) {
	case []string:
		t.Descendants = append([]string(nil), d...)
	case []any:
		for _, v := range d {
			if s, ok := v.(string); ok {
				t.Descendants = append(t.Descendants, s)
			}
		}
	}
	return t
}

// Document converts the term into a storable document.
func (t Term) Document() filter.Document {
	doc := filter.Document{
		"type":       t.Type,
		"id":         t.ID,
		"label":      t.Label,
		"count":      t.Count,
		"collection": t.Collection,
		"field":      t.Field,
	}
	if len(t.Descendants) > 0 {
		d := make([]any, len(t.Descendants))
		for i, s := range t.Descendants {
			d[i] = s
		}
		doc["descendants"] = d
	}
	return doc
}

func stringField(doc filter.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}
