package repository

import "time"

// parseTime parses an RFC3339 field value, falling back when empty or
// malformed.
func parseTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fallback
	}
	return t
}

// timeField formats an optional time for storage; nil times are omitted by
// callers.
func timeField(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
