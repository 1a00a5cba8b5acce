package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agrilink/agrilink-backend/pkg/migrate"
)

func TestInitSchemaContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no init schema migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CHECK (available_qty >= 0)",
		"CHECK (reserved_qty >= 0)",
		"CREATE UNIQUE INDEX ux_outbox_events_event_aggregate",
		"CREATE UNIQUE INDEX ux_loyalty_order_reason",
		"CREATE UNIQUE INDEX ux_delivery_jobs_order_id",
		"CREATE UNIQUE INDEX ux_admin_revenues_order_item_id",
		"CREATE TYPE delivery_job_status",
		"DROP TABLE IF EXISTS outbox_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
