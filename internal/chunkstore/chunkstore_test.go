package chunkstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/hivehq/hive-api/internal/database/migrations"
	"github.com/hivehq/hive-api/internal/recordstore"
)

const testTable = "DiagnosticDetails"

// setupStore creates a chunk store over an in-memory record store. The
// underlying client is returned so tests can plant raw fragments.
func setupStore(t *testing.T) (*Store, recordstore.Client) {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Each libsql connection gets its own in-memory database; keep the pool
	// at one connection so concurrent writers see the migrated schema.
	db.SetMaxOpenConns(1)
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	client := recordstore.NewSQLiteStore(db)
	return New(client, testTable, nil), client
}

func countFragments(t *testing.T, client recordstore.Client, ownerID string) int {
	t.Helper()
	records, err := client.Select(context.Background(), testTable, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: "Owner", Equals: ownerID}},
	})
	if err != nil {
		t.Fatalf("failed to list fragments: %v", err)
	}
	return len(records)
}

func TestRoundTripBelowThreshold(t *testing.T) {
	store, client := setupStore(t)
	ctx := context.Background()

	content := strings.Repeat("x", 1000)
	ids, err := store.Store(ctx, "run-1", "modules", content)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 fragment id, got %d", len(ids))
	}
	if got := countFragments(t, client, "run-1"); got != 1 {
		t.Errorf("expected 1 stored fragment, got %d", got)
	}

	blob, err := store.FetchOne(ctx, "run-1", "modules")
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if blob == nil {
		t.Fatal("expected blob, got nil")
	}
	if blob.Content != content {
		t.Error("content mismatch after round trip")
	}
}

func TestRoundTripAboveThreshold(t *testing.T) {
	store, client := setupStore(t)
	ctx := context.Background()

	// 250 KB: expect ceil(256000/92160) = 3 fragments
	content := strings.Repeat("abcdefgh", 32000)
	ids, err := store.Store(ctx, "run-2", "modules", content)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 fragment ids, got %d", len(ids))
	}

	records, err := client.Select(ctx, testTable, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: "Owner", Equals: "run-2"}},
	})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	labels := make(map[string]bool)
	for _, rec := range records {
		labels[rec.StringField("Label")] = true
		if n := len(rec.StringField("Payload")); n > FragmentThreshold {
			t.Errorf("fragment %q exceeds threshold: %d bytes", rec.StringField("Label"), n)
		}
	}
	for i := 1; i <= 3; i++ {
		want := fmt.Sprintf("modules_chunk_%d_of_3", i)
		if !labels[want] {
			t.Errorf("missing fragment label %q", want)
		}
	}

	blob, err := store.FetchOne(ctx, "run-2", "modules")
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if blob == nil || blob.Content != content {
		t.Error("content mismatch after chunked round trip")
	}
}

func TestMultiByteBoundarySafety(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	// A 1-byte prefix before a run of 3-byte runes forces every chunk
	// boundary to land mid-codepoint unless the split backs off to a rune
	// edge.
	content := "a" + strings.Repeat("日本語", 40000) // 360,001 bytes
	if _, err := store.Store(ctx, "run-3", "websiteLabV4", content); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	blob, err := store.FetchOne(ctx, "run-3", "websiteLabV4")
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if blob == nil {
		t.Fatal("expected blob")
	}
	if blob.Content != content {
		t.Error("multi-byte content corrupted by chunk boundary")
	}
	if strings.ContainsRune(blob.Content, '�') {
		t.Error("replacement character found in reassembled content")
	}
}

func TestSplitUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  int // expected piece count
	}{
		{"empty", "", 10, 1},
		{"under", "hello", 10, 1},
		{"exact", "0123456789", 10, 1},
		{"ascii split", "0123456789a", 10, 2},
		{"multibyte backs off", "aaaaaaaaaé", 10, 2}, // é starts at byte 9, ends at 11
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := splitUTF8(tt.input, tt.max)
			if len(parts) != tt.want {
				t.Fatalf("got %d parts, want %d", len(parts), tt.want)
			}
			for i, p := range parts {
				if len(p) > tt.max {
					t.Errorf("part %d has %d bytes, max %d", i, len(p), tt.max)
				}
			}
			if joined := strings.Join(parts, ""); joined != tt.input {
				t.Error("concatenation does not reproduce input")
			}
		})
	}
}

func TestIdempotentRefetch(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	content := strings.Repeat("data", 50000) // 200 KB, chunked
	if _, err := store.Store(ctx, "run-4", "modules", content); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	first, err := store.FetchAll(ctx, "run-4")
	if err != nil {
		t.Fatalf("first FetchAll failed: %v", err)
	}
	second, err := store.FetchAll(ctx, "run-4")
	if err != nil {
		t.Fatalf("second FetchAll failed: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 blob from each fetch, got %d and %d", len(first), len(second))
	}
	if first[0].Content != second[0].Content {
		t.Error("repeated fetch returned different content")
	}
}

func TestDuplicateChunkResolution(t *testing.T) {
	store, client := setupStore(t)
	ctx := context.Background()

	// Two fragments with the same label from a retried write; the second
	// insert has the later created_at and must win.
	plant := func(label, payload string) {
		t.Helper()
		if _, err := client.Create(ctx, testTable, map[string]any{
			"Owner":   "run-5",
			"Label":   label,
			"Payload": payload,
			"Size KB": float64(len(payload)) / 1024,
		}); err != nil {
			t.Fatalf("failed to plant fragment: %v", err)
		}
	}

	plant("modules_chunk_1_of_2", "STALE-")
	plant("modules_chunk_2_of_2", "tail")
	plant("modules_chunk_1_of_2", "fresh-")

	blob, err := store.FetchOne(ctx, "run-5", "modules")
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if blob == nil {
		t.Fatal("expected blob")
	}
	if blob.Content != "fresh-tail" {
		t.Errorf("Content = %q, want %q", blob.Content, "fresh-tail")
	}
	if strings.Contains(blob.Content, "STALE") {
		t.Error("stale duplicate chunk leaked into reassembled content")
	}
}

func TestPartialChunkSetDegradesSilently(t *testing.T) {
	store, client := setupStore(t)
	ctx := context.Background()

	// Chunk set advertising N=5 with chunk 3 missing. Documented behavior:
	// no error, the blob simply lacks chunk 3's bytes.
	for _, i := range []int{1, 2, 4, 5} {
		if _, err := client.Create(ctx, testTable, map[string]any{
			"Owner":   "run-6",
			"Label":   fmt.Sprintf("modules_chunk_%d_of_5", i),
			"Payload": fmt.Sprintf("[part%d]", i),
			"Size KB": 0.01,
		}); err != nil {
			t.Fatalf("failed to plant fragment: %v", err)
		}
	}

	blob, err := store.FetchOne(ctx, "run-6", "modules")
	if err != nil {
		t.Fatalf("FetchOne must not fail on a partial chunk set: %v", err)
	}
	if blob == nil {
		t.Fatal("expected degraded blob, got nil")
	}
	if blob.Content != "[part1][part2][part4][part5]" {
		t.Errorf("Content = %q, want the gap-preserving concatenation", blob.Content)
	}
}

func TestStaleUnchunkedRecordDiscarded(t *testing.T) {
	store, client := setupStore(t)
	ctx := context.Background()

	// A leftover whole-blob record alongside a chunk set for the same base
	// type is discarded in favor of the chunk set.
	plant := func(label, payload string) {
		t.Helper()
		if _, err := client.Create(ctx, testTable, map[string]any{
			"Owner": "run-7", "Label": label, "Payload": payload, "Size KB": 0.01,
		}); err != nil {
			t.Fatalf("failed to plant fragment: %v", err)
		}
	}

	plant("modules", "old-whole-blob")
	plant("modules_chunk_1_of_2", "new-")
	plant("modules_chunk_2_of_2", "blob")

	blob, err := store.FetchOne(ctx, "run-7", "modules")
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if blob == nil {
		t.Fatal("expected blob")
	}
	if blob.Content != "new-blob" {
		t.Errorf("Content = %q, want %q", blob.Content, "new-blob")
	}
}

func TestMultiTypeIsolation(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	modules := strings.Repeat("m", 100000) // chunked
	website := strings.Repeat("w", 200000) // chunked
	summary := `{"status":"complete"}`     // whole blob

	for dataType, content := range map[string]string{
		"modules": modules, "websiteLabV4": website, "summary": summary,
	} {
		if _, err := store.Store(ctx, "run-8", dataType, content); err != nil {
			t.Fatalf("Store %s failed: %v", dataType, err)
		}
	}

	blobs, err := store.FetchAll(ctx, "run-8")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(blobs) != 3 {
		t.Fatalf("expected 3 blobs, got %d", len(blobs))
	}

	byType := make(map[string]string, len(blobs))
	for _, b := range blobs {
		byType[b.DataType] = b.Content
	}
	if byType["modules"] != modules {
		t.Error("modules blob cross-contaminated")
	}
	if byType["websiteLabV4"] != website {
		t.Error("websiteLabV4 blob cross-contaminated")
	}
	if byType["summary"] != summary {
		t.Error("summary blob corrupted")
	}
}

func TestBulkDeleteCompleteness(t *testing.T) {
	store, client := setupStore(t)
	ctx := context.Background()

	// >10 fragments so DeleteAll must issue multiple destroy batches.
	content := strings.Repeat("z", FragmentThreshold*12)
	if _, err := store.Store(ctx, "run-9", "modules", content); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if got := countFragments(t, client, "run-9"); got <= 10 {
		t.Fatalf("test needs more than one delete batch, only %d fragments stored", got)
	}

	// A second owner's fragments must survive the delete.
	if _, err := store.Store(ctx, "run-other", "modules", "keep me"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := store.DeleteAll(ctx, "run-9"); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	blobs, err := store.FetchAll(ctx, "run-9")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("expected no blobs after DeleteAll, got %d", len(blobs))
	}
	if got := countFragments(t, client, "run-9"); got != 0 {
		t.Errorf("expected 0 fragments after DeleteAll, got %d", got)
	}

	other, err := store.FetchOne(ctx, "run-other", "modules")
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if other == nil || other.Content != "keep me" {
		t.Error("DeleteAll removed another owner's fragments")
	}
}

func TestJSONRoundTripEndToEnd(t *testing.T) {
	store, client := setupStore(t)
	ctx := context.Background()

	// A ~300 KB JSON document must survive chunking and parse back to the
	// identical structure.
	payload := map[string]any{"entries": make([]any, 0, 3000)}
	for i := 0; i < 3000; i++ {
		payload["entries"] = append(payload["entries"].([]any), map[string]any{
			"id":    fmt.Sprintf("finding-%04d", i),
			"score": i,
			"note":  strings.Repeat("detail ", 10),
		})
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if len(encoded) <= 2*FragmentThreshold {
		t.Fatalf("test payload too small to chunk meaningfully: %d bytes", len(encoded))
	}

	ids, err := store.Store(ctx, "run-10", "modules", string(encoded))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	wantChunks := (len(encoded) + FragmentThreshold - 1) / FragmentThreshold
	if len(ids) != wantChunks {
		t.Errorf("got %d chunks, want %d", len(ids), wantChunks)
	}
	if got := countFragments(t, client, "run-10"); got != wantChunks {
		t.Errorf("store holds %d fragments, want %d", got, wantChunks)
	}

	blob, err := store.FetchOne(ctx, "run-10", "modules")
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if blob == nil {
		t.Fatal("expected blob")
	}
	if len(blob.Content) != len(encoded) {
		t.Fatalf("reassembled length %d, want %d", len(blob.Content), len(encoded))
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(blob.Content), &decoded); err != nil {
		t.Fatalf("reassembled blob is not valid JSON: %v", err)
	}
	if n := len(decoded["entries"].([]any)); n != 3000 {
		t.Errorf("decoded %d entries, want 3000", n)
	}
}

func TestStoreValidatesInput(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, "", "modules", "x"); err == nil {
		t.Error("expected error for empty owner id")
	}
	if _, err := store.Store(ctx, "run-1", "", "x"); err == nil {
		t.Error("expected error for empty data type")
	}
}

func TestStoreEmptyContent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, "run-11", "modules", ""); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	blob, err := store.FetchOne(ctx, "run-11", "modules")
	if err != nil {
		t.Fatalf("FetchOne failed: %v", err)
	}
	if blob == nil {
		t.Fatal("expected blob for empty content")
	}
	if blob.Content != "" {
		t.Errorf("Content = %q, want empty", blob.Content)
	}
}

func TestFetchOneMissingReturnsNil(t *testing.T) {
	store, _ := setupStore(t)

	blob, err := store.FetchOne(context.Background(), "run-nope", "modules")
	if err != nil {
		t.Fatalf("FetchOne must not fail on missing blob: %v", err)
	}
	if blob != nil {
		t.Errorf("expected nil blob, got %+v", blob)
	}
}
