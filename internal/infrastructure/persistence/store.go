package persistence

import (
	"context"
	"strings"
)

// Document is a persisted record. TableName doubles as the collection name
// for the document store.
type Document interface {
	TableName() string
}

// Query selects documents by field equality. Keys are column names; "id"
// addresses the primary key on every backend.
type Query struct {
	Where   map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// Where builds a Query from alternating key/value pairs.
//
//	persistence.Where("id", id, "clinic_id", clinicID)
func Where(pairs ...any) Query {
	q := Query{Where: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		q.Where[key] = pairs[i+1]
	}
	return q
}

// Order returns a copy of q sorted by field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// Store is the backend-neutral persistence contract. The relational and the
// document backends both implement it, so the repositories above it stay
// free of driver specifics.
//
// FindOne and Update return shared.ErrNotFound when nothing matches; Create
// returns shared.ErrAlreadyExists on a unique violation. Any other driver
// failure is wrapped as a STORE_ERROR domain error.
type Store interface {
	Create(ctx context.Context, doc Document) error
	FindOne(ctx context.Context, q Query, dest Document) error
	// Find loads every match into dest, a pointer to a slice of documents.
	Find(ctx context.Context, q Query, dest any) error
	// Update replaces the stored fields of the document matching q. q must
	// include the document id.
	Update(ctx context.Context, q Query, doc Document) error
	// Delete removes every match of q from doc's table and returns the count.
	// An empty q is rejected.
	Delete(ctx context.Context, q Query, doc Document) (int64, error)
	// Transaction runs fn against a store bound to one unit of work.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// sortFields whitelists the columns a Query may order by.
var sortFields = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"generated_at": true,
	"position":     true,
	"name":         true,
	"email":        true,
}

// sortColumn returns the whitelisted order column of q, or "" when q is
// unordered or names a column outside the whitelist.
func (q Query) sortColumn() string {
	field := strings.TrimSpace(q.OrderBy)
	if !sortFields[field] {
		return ""
	}
	return field
}
