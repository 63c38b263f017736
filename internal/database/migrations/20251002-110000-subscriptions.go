package migrations

func init() {
	Register(Migration{
		Timestamp:   "20251002-110000",
		Description: "stripe subscription state",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS subscriptions (
				user_id TEXT PRIMARY KEY,
				stripe_customer_id TEXT NOT NULL DEFAULT '',
				stripe_subscription_id TEXT NOT NULL DEFAULT '',
				plan TEXT NOT NULL DEFAULT 'free',
				status TEXT NOT NULL DEFAULT 'inactive',
				current_period_end TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_customer ON subscriptions(stripe_customer_id)`,
		},
	})
}
