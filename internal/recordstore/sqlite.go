package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SQLiteStore implements Client on a local libsql database. Records are
// stored as one row per record with the field set serialized to JSON, which
// keeps the store schemaless like the hosted backend.
//
// Filtering and sorting happen in memory after narrowing by table. Workspace
// tables are small (hundreds of records per company), so this stays well
// within budget and avoids JSON-path SQL that differs between sqlite builds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an existing database connection.
// The records table is created by migrations.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create writes one record with a fresh ID.
func (s *SQLiteStore) Create(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	if fields == nil {
		fields = map[string]any{}
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	now := time.Now().UTC()
	id := "rec" + ulid.Make().String()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, table_name, fields, created_at)
		VALUES (?, ?, ?, ?)
	`, id, table, string(fieldsJSON), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	// Round-trip through JSON so numeric fields come back as float64,
	// matching what callers see after a Select.
	var normalized map[string]any
	if err := json.Unmarshal(fieldsJSON, &normalized); err != nil {
		return nil, fmt.Errorf("failed to normalize fields: %w", err)
	}

	return &Record{ID: id, Fields: normalized, CreatedAt: now}, nil
}

// Get returns one record by ID.
func (s *SQLiteStore) Get(ctx context.Context, table, id string) (*Record, error) {
	var fieldsJSON, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT fields, created_at FROM records WHERE id = ? AND table_name = ?
	`, id, table).Scan(&fieldsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", id, err)
	}

	rec := &Record{ID: id, Fields: fields}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// Select returns matching records for a table.
func (s *SQLiteStore) Select(ctx context.Context, table string, q Query) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fields, created_at
		FROM records
		WHERE table_name = ?
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var id, fieldsJSON, createdAt string
		if err := rows.Scan(&id, &fieldsJSON, &createdAt); err != nil {
			return nil, err
		}

		var fields map[string]any
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("corrupt record %s: %w", id, err)
		}

		rec := &Record{ID: id, Fields: fields}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		if matches(rec, q.Conditions) {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if q.SortField != "" {
		sortRecords(records, q.SortField, q.SortDesc)
	}
	if q.MaxRecords > 0 && len(records) > q.MaxRecords {
		records = records[:q.MaxRecords]
	}

	return records, nil
}

// Update replaces the given fields on an existing record, keeping fields not
// named in the update.
func (s *SQLiteStore) Update(ctx context.Context, table, id string, fields map[string]any) (*Record, error) {
	var fieldsJSON, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT fields, created_at FROM records WHERE id = ? AND table_name = ?
	`, id, table).Scan(&fieldsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var existing map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &existing); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", id, err)
	}
	for k, v := range fields {
		existing[k] = v
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE records SET fields = ? WHERE id = ?
	`, string(merged), id); err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	var normalized map[string]any
	if err := json.Unmarshal(merged, &normalized); err != nil {
		return nil, err
	}

	rec := &Record{ID: id, Fields: normalized}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// Destroy deletes up to DestroyBatchLimit records by ID.
func (s *SQLiteStore) Destroy(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > DestroyBatchLimit {
		return ErrTooManyIDs
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, table)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE table_name = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}

	return nil
}

func matches(rec *Record, conditions []Condition) bool {
	for _, cond := range conditions {
		value := rec.Fields[cond.Field]
		switch {
		case cond.Contains != "":
			s, ok := value.(string)
			if !ok || !strings.Contains(s, cond.Contains) {
				return false
			}
		case cond.Equals != nil:
			if !looseEqual(value, cond.Equals) {
				return false
			}
		}
	}
	return true
}

// looseEqual compares a stored (JSON-decoded) value against a query value,
// tolerating the int-vs-float64 mismatch JSON decoding introduces.
func looseEqual(stored, queried any) bool {
	if stored == queried {
		return true
	}
	sf, sok := toFloat(stored)
	qf, qok := toFloat(queried)
	return sok && qok && sf == qf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func sortRecords(records []*Record, field string, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		less := lessField(records[i].Fields[field], records[j].Fields[field])
		if desc {
			return !less
		}
		return less
	})
}

func lessField(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, _ := toFloat(b)
		return af < bf
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	return as < bs
}
