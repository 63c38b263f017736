package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250915-000000",
		Description: "initial schema: local record store",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS records (
				id TEXT PRIMARY KEY,
				table_name TEXT NOT NULL,
				fields TEXT NOT NULL DEFAULT '{}',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_records_table ON records(table_name)`,
		},
	})
}
