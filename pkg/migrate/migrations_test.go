package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestSubscriptionMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_subscriptions.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS subscriptions",
		"status subscription_status NOT NULL DEFAULT 'active'",
		"CHECK (grace_period_ends_at IS NULL OR end_date <= grace_period_ends_at)",
		"CHECK (asaas_payment_id IS NULL OR asaas_customer_id IS NOT NULL)",
		"WHERE status <> 'cancelled'",
		"DROP TABLE IF EXISTS subscriptions",
	}
	for _, sub := range checks {
		assert.Contains(t, content, sub)
	}
}

func TestChargeMigrationEnforcesOneChargePerReference(t *testing.T) {
	content := readMigration(t, "*_create_subscription_charges.sql")
	assert.Contains(t, content, "UNIQUE (external_reference)")
	assert.Contains(t, content, "REFERENCES subscriptions(id)")
}

func TestEnsureSQLiteSchemaIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrate_schema?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, EnsureSQLiteSchema(context.Background(), db))
	require.NoError(t, EnsureSQLiteSchema(context.Background(), db))

	for _, table := range []string{"subscriptions", "subscription_charges", "outbox_events", "notifications"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Charge Index")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_charge_index.sql"))
	require.NoError(t, ValidateDir(dir))
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", pattern)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestNotificationMigrationDedupesEvents(t *testing.T) {
	content := readMigration(t, "*_create_notifications.sql")
	assert.Contains(t, content, "CREATE TYPE notification_type")
	assert.Contains(t, content, "ON notifications (event_id, user_id)")
}
