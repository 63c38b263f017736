// Package chunkstore persists text blobs that exceed the record store's
// per-record size ceiling by splitting them into numbered fragments and
// reassembling them transparently on read.
//
// A blob is identified by (owner ID, data type). Small blobs are stored as a
// single record labeled with the bare data type; large blobs become a chunk
// set labeled "{dataType}_chunk_{n}_of_{N}". Reassembly orders fragments by
// the chunk number parsed from the label, never by storage order, and
// concatenates payloads with no separator, so splits must land on UTF-8
// codepoint boundaries to keep the round trip byte-exact.
package chunkstore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hivehq/hive-api/internal/recordstore"
)

// FragmentThreshold is the maximum payload size per record in bytes (90 KiB).
// The backing store caps records around 100 KB; the margin absorbs field
// overhead and encoding slack.
const FragmentThreshold = 92160

// Record store field names, confined to this package.
const (
	fieldOwner   = "Owner"
	fieldLabel   = "Label"
	fieldPayload = "Payload"
	fieldSizeKB  = "Size KB"
)

var chunkIndexPattern = regexp.MustCompile(`_chunk_(\d+)_of_`)

// Blob is a reassembled logical payload.
type Blob struct {
	DataType string
	Content  string
	SizeKB   float64
}

// Store reads and writes chunked blobs through a record store client.
type Store struct {
	client recordstore.Client
	table  string
	logger *slog.Logger
}

// New creates a Store over the given table.
func New(client recordstore.Client, table string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		table:  table,
		logger: logger.With("component", "chunkstore"),
	}
}

// Store persists content under (ownerID, dataType) and returns the created
// record IDs in chunk order.
//
// Content at or under FragmentThreshold bytes is written as one record.
// Larger content is split into byte-bounded fragments and written
// concurrently; fragments are independent records with no write-order
// dependency. A failure mid-sequence leaves already-written fragments in
// place — the caller must treat any error as "potentially partial" and
// verify via FetchAll before relying on the blob.
//
// Repeated calls for the same key append a second fragment set rather than
// replacing the first; FetchAll resolves duplicates by recency.
func (s *Store) Store(ctx context.Context, ownerID, dataType, content string) ([]string, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("chunkstore: owner id is required")
	}
	if dataType == "" {
		return nil, fmt.Errorf("chunkstore: data type is required")
	}

	if len(content) <= FragmentThreshold {
		rec, err := s.writeFragment(ctx, ownerID, dataType, content)
		if err != nil {
			return nil, err
		}
		return []string{rec}, nil
	}

	chunks := splitUTF8(content, FragmentThreshold)
	n := len(chunks)

	s.logger.Debug("splitting oversized blob",
		"owner_id", ownerID,
		"data_type", dataType,
		"size_bytes", len(content),
		"chunks", n,
	)

	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			label := fmt.Sprintf("%s_chunk_%d_of_%d", dataType, i+1, n)
			ids[i], errs[i] = s.writeFragment(ctx, ownerID, label, chunk)
		}(i, chunk)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			// No rollback: fragments already written stay behind.
			return nil, fmt.Errorf("chunkstore: writing chunk %d of %d: %w", i+1, n, err)
		}
	}

	return ids, nil
}

func (s *Store) writeFragment(ctx context.Context, ownerID, label, payload string) (string, error) {
	rec, err := s.client.Create(ctx, s.table, map[string]any{
		fieldOwner:   ownerID,
		fieldLabel:   label,
		fieldPayload: payload,
		fieldSizeKB:  float64(len(payload)) / 1024,
	})
	if err != nil {
		return "", fmt.Errorf("chunkstore: create fragment %q: %w", label, err)
	}
	return rec.ID, nil
}

// FetchAll reassembles every blob stored under ownerID, one per distinct
// data type. Blobs are returned sorted by data type.
//
// Logical inconsistencies degrade rather than fail: a stale unchunked record
// alongside a chunk set is discarded, duplicate chunk labels resolve to the
// most recently created fragment, and a missing chunk produces a blob
// missing those bytes — downstream content validation (JSON parsing) is the
// detection point. Only backing-store errors propagate.
func (s *Store) FetchAll(ctx context.Context, ownerID string) ([]Blob, error) {
	records, err := s.client.Select(ctx, s.table, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: fieldOwner, Equals: ownerID}},
		SortField:  fieldLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("chunkstore: fetch fragments for %q: %w", ownerID, err)
	}

	groups := make(map[string][]*recordstore.Record)
	for _, rec := range records {
		label := rec.StringField(fieldLabel)
		baseType := label
		if idx := strings.Index(label, "_chunk_"); idx >= 0 {
			baseType = label[:idx]
		}
		groups[baseType] = append(groups[baseType], rec)
	}

	blobs := make([]Blob, 0, len(groups))
	for baseType, members := range groups {
		if blob, ok := s.assemble(ownerID, baseType, members); ok {
			blobs = append(blobs, blob)
		}
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].DataType < blobs[j].DataType })
	return blobs, nil
}

// assemble reconstructs one base type's blob from its fragment group.
func (s *Store) assemble(ownerID, baseType string, members []*recordstore.Record) (Blob, bool) {
	// Whole blob: a single record whose label carries no chunk marker.
	if len(members) == 1 && !strings.Contains(members[0].StringField(fieldLabel), "_chunk_") {
		return Blob{
			DataType: baseType,
			Content:  members[0].StringField(fieldPayload),
			SizeKB:   members[0].FloatField(fieldSizeKB),
		}, true
	}

	// Chunked group: unchunked records for the same base type are stale
	// leftovers from an earlier whole-blob write and are dropped.
	chunks := members[:0]
	for _, rec := range members {
		if strings.Contains(rec.StringField(fieldLabel), "_chunk_") {
			chunks = append(chunks, rec)
		}
	}
	if len(chunks) == 0 {
		s.logger.Warn("unrecoverable fragment group",
			"owner_id", ownerID,
			"data_type", baseType,
			"members", len(members),
		)
		return Blob{}, false
	}

	// Duplicate chunk labels come from retried writes; keep the most
	// recently created fragment for each label.
	byLabel := make(map[string]*recordstore.Record, len(chunks))
	for _, rec := range chunks {
		label := rec.StringField(fieldLabel)
		if existing, ok := byLabel[label]; ok {
			s.logger.Debug("duplicate chunk label",
				"owner_id", ownerID,
				"label", label,
			)
			if !rec.CreatedAt.After(existing.CreatedAt) {
				continue
			}
		}
		byLabel[label] = rec
	}

	deduped := make([]*recordstore.Record, 0, len(byLabel))
	for _, rec := range byLabel {
		deduped = append(deduped, rec)
	}
	sort.Slice(deduped, func(i, j int) bool {
		return chunkIndex(deduped[i].StringField(fieldLabel)) < chunkIndex(deduped[j].StringField(fieldLabel))
	})

	var content strings.Builder
	var sizeKB float64
	for _, rec := range deduped {
		content.WriteString(rec.StringField(fieldPayload))
		sizeKB += rec.FloatField(fieldSizeKB)
	}

	return Blob{DataType: baseType, Content: content.String(), SizeKB: sizeKB}, true
}

// FetchOne returns the blob for one data type, or nil when absent. Only
// backing-store failures produce an error.
func (s *Store) FetchOne(ctx context.Context, ownerID, dataType string) (*Blob, error) {
	blobs, err := s.FetchAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range blobs {
		if blobs[i].DataType == dataType {
			return &blobs[i], nil
		}
	}
	return nil, nil
}

// DeleteAll removes every fragment stored under ownerID across all data
// types, batching deletes to the store's cardinality limit. A failed batch
// aborts the loop; earlier batches are not rolled back, so the caller must
// re-query to learn the surviving state.
func (s *Store) DeleteAll(ctx context.Context, ownerID string) error {
	records, err := s.client.Select(ctx, s.table, recordstore.Query{
		Conditions: []recordstore.Condition{{Field: fieldOwner, Equals: ownerID}},
	})
	if err != nil {
		return fmt.Errorf("chunkstore: list fragments for delete: %w", err)
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}

	for start := 0; start < len(ids); start += recordstore.DestroyBatchLimit {
		end := start + recordstore.DestroyBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.client.Destroy(ctx, s.table, ids[start:end]); err != nil {
			return fmt.Errorf("chunkstore: delete batch at %d: %w", start, err)
		}
	}

	s.logger.Debug("deleted fragments", "owner_id", ownerID, "count", len(ids))
	return nil
}

// chunkIndex parses the chunk number from a fragment label. Labels that
// don't match the pattern sort as index 0.
func chunkIndex(label string) int {
	m := chunkIndexPattern.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// splitUTF8 splits s into consecutive pieces of at most max bytes, backing
// each cut off to the nearest codepoint boundary so no multi-byte character
// straddles two pieces. Concatenating the pieces reproduces s exactly.
func splitUTF8(s string, max int) []string {
	var parts []string
	for len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			// Invalid UTF-8 with no rune start in the first max bytes;
			// split hard rather than loop forever.
			cut = max
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	return append(parts, s)
}
