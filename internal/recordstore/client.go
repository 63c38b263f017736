// Package recordstore defines the boundary to the record-oriented backing
// store that holds company workspace data (companies, diagnostic runs,
// findings, work items, blob fragments).
//
// Two implementations exist: an Airtable HTTP client for hosted workspaces
// and a libsql-backed store for self-hosted deployments and tests. Both
// enforce the store's per-record size ceiling upstream of this package; the
// chunked blob store in internal/chunkstore exists because of that ceiling.
package recordstore

import (
	"context"
	"errors"
	"time"
)

// DestroyBatchLimit is the maximum number of record IDs a single Destroy
// call accepts. Callers deleting more records must batch.
const DestroyBatchLimit = 10

var (
	// ErrNotFound is returned when a record ID does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrTooManyIDs is returned when Destroy is called with more than
	// DestroyBatchLimit IDs.
	ErrTooManyIDs = errors.New("too many record ids for a single destroy call")
)

// Record is one stored record.
type Record struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// Condition is a single field predicate. Equals and Contains are mutually
// exclusive; Contains performs a substring match.
type Condition struct {
	Field    string
	Equals   any
	Contains string
}

// Query selects records from a table. All conditions must match.
type Query struct {
	Conditions []Condition
	SortField  string
	SortDesc   bool
	MaxRecords int // 0 = no limit
}

// Client is the record store interface. Implementations must be safe for
// concurrent use.
type Client interface {
	// Create writes one record and returns it with the assigned ID.
	Create(ctx context.Context, table string, fields map[string]any) (*Record, error)

	// Get returns one record by ID, or ErrNotFound.
	Get(ctx context.Context, table, id string) (*Record, error)

	// Select returns all records matching the query.
	Select(ctx context.Context, table string, q Query) ([]*Record, error)

	// Update replaces the given fields on an existing record.
	Update(ctx context.Context, table, id string, fields map[string]any) (*Record, error)

	// Destroy deletes up to DestroyBatchLimit records by ID.
	Destroy(ctx context.Context, table string, ids []string) error
}

// StringField reads a string field from a record, returning "" when the
// field is absent or not a string.
func (r *Record) StringField(name string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	s, _ := r.Fields[name].(string)
	return s
}

// FloatField reads a numeric field. JSON decoding produces float64 for all
// numbers, so this covers integer-valued fields too.
func (r *Record) FloatField(name string) float64 {
	if r == nil || r.Fields == nil {
		return 0
	}
	f, _ := r.Fields[name].(float64)
	return f
}

// BoolField reads a boolean field.
func (r *Record) BoolField(name string) bool {
	if r == nil || r.Fields == nil {
		return false
	}
	b, _ := r.Fields[name].(bool)
	return b
}
