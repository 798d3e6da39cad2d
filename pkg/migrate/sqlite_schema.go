package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the Postgres migrations with SQLite types. Enum columns
// become TEXT and uuid columns hold their string form.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan_type TEXT NOT NULL,
  plan_value NUMERIC NOT NULL,
  asaas_customer_id TEXT,
  asaas_payment_id TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  start_date DATETIME NOT NULL,
  end_date DATETIME NOT NULL,
  grace_period_ends_at DATETIME,
  blocked_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_one_open_per_user
  ON subscriptions (user_id) WHERE status <> 'cancelled'`,
	`CREATE TABLE IF NOT EXISTS subscription_charges (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL REFERENCES subscriptions(id),
  asaas_customer_id TEXT NOT NULL,
  asaas_payment_id TEXT NOT NULL,
  external_reference TEXT NOT NULL UNIQUE,
  billing_period DATETIME NOT NULL,
  amount NUMERIC NOT NULL,
  billing_type TEXT NOT NULL DEFAULT 'PIX',
  due_date TEXT NOT NULL,
  description TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  event_id TEXT,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS notifications_event_user_idx
  ON notifications (event_id, user_id) WHERE event_id IS NOT NULL`,
}

// EnsureSQLiteSchema creates the billing and notification tables on a SQLite connection.
func EnsureSQLiteSchema(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	for _, stmt := range sqliteSchema {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
