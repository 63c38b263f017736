package recordstore

import (
	"context"
	"testing"
)

func TestSQLiteStoreCreateAndSelect(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "Companies", map[string]any{
		"Name":   "Acme Rockets",
		"Domain": "acme.example",
		"Score":  42,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected assigned record ID")
	}

	records, err := store.Select(ctx, "Companies", Query{})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0].StringField("Name"); got != "Acme Rockets" {
		t.Errorf("Name = %q, want %q", got, "Acme Rockets")
	}
	if got := records[0].FloatField("Score"); got != 42 {
		t.Errorf("Score = %v, want 42", got)
	}
}

func TestSQLiteStoreSelectFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "alphabet"} {
		if _, err := store.Create(ctx, "Items", map[string]any{"Name": name, "Kind": "x"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := store.Create(ctx, "Items", map[string]any{"Name": "gamma", "Kind": "y"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"equality", Query{Conditions: []Condition{{Field: "Kind", Equals: "x"}}}, 3},
		{"substring", Query{Conditions: []Condition{{Field: "Name", Contains: "alpha"}}}, 2},
		{"combined", Query{Conditions: []Condition{
			{Field: "Kind", Equals: "x"},
			{Field: "Name", Contains: "bet"},
		}}, 2},
		{"no match", Query{Conditions: []Condition{{Field: "Kind", Equals: "z"}}}, 0},
		{"max records", Query{MaxRecords: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.Select(ctx, "Items", tt.query)
			if err != nil {
				t.Fatalf("Select failed: %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("got %d records, want %d", len(records), tt.want)
			}
		})
	}
}

func TestSQLiteStoreSelectSorts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, label := range []string{"b_item", "c_item", "a_item"} {
		if _, err := store.Create(ctx, "Items", map[string]any{"Label": label}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	records, err := store.Select(ctx, "Items", Query{SortField: "Label"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	want := []string{"a_item", "b_item", "c_item"}
	for i, w := range want {
		if got := records[i].StringField("Label"); got != w {
			t.Errorf("records[%d].Label = %q, want %q", i, got, w)
		}
	}

	records, err = store.Select(ctx, "Items", Query{SortField: "Label", SortDesc: true})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if got := records[0].StringField("Label"); got != "c_item" {
		t.Errorf("descending first = %q, want c_item", got)
	}
}

func TestSQLiteStoreUpdateMergesFields(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "Companies", map[string]any{"Name": "Acme", "Stage": "lead"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := store.Update(ctx, "Companies", rec.ID, map[string]any{"Stage": "customer"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := updated.StringField("Stage"); got != "customer" {
		t.Errorf("Stage = %q, want customer", got)
	}
	if got := updated.StringField("Name"); got != "Acme" {
		t.Errorf("Name = %q, want Acme (unnamed fields must survive)", got)
	}
}

func TestSQLiteStoreUpdateMissingRecord(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Update(context.Background(), "Companies", "rec_missing", map[string]any{"Stage": "x"})
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreDestroy(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		rec, err := store.Create(ctx, "Items", map[string]any{"N": i})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	if err := store.Destroy(ctx, "Items", ids[:3]); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}

	records, err := store.Select(ctx, "Items", Query{})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 surviving records, got %d", len(records))
	}
}

func TestSQLiteStoreDestroyBatchLimit(t *testing.T) {
	store := setupTestStore(t)

	ids := make([]string, DestroyBatchLimit+1)
	for i := range ids {
		ids[i] = "rec_x"
	}

	if err := store.Destroy(context.Background(), "Items", ids); err != ErrTooManyIDs {
		t.Errorf("expected ErrTooManyIDs, got %v", err)
	}
}
