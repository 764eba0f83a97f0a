package db

import (
	"strings"
	"testing"

	"github.com/bendichter/dandi-sql/internal/schema"
)

func TestOpenPostgresRejectsEmptyDSN(t *testing.T) {
	if _, err := OpenPostgres("", 0); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

// Every table the registry whitelists must be created by the migrations, or
// admitted raw SQL would fail at runtime against a missing relation.
func TestMigrationsCoverWhitelistedTables(t *testing.T) {
	ddl, err := EmbedMigrations.ReadFile("migrations/00001_create_catalog_tables.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	src := string(ddl)

	for _, table := range schema.Default().AllowedTables() {
		if !strings.Contains(src, "CREATE TABLE "+table+" (") {
			t.Errorf("migration does not create whitelisted table %q", table)
		}
	}
}
