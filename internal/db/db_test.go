package db

import (
	"path/filepath"
	"testing"
)

func TestOpenRunsMigrations(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "liable.db") + "?_pragma=foreign_keys(1)&_time_format=sqlite"

	database, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer Close(database)

	version, err := Version(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}

	var count int
	err = database.Get(&count, `SELECT COUNT(*) FROM goals`)
	if err != nil {
		t.Fatalf("goals table missing: %v", err)
	}

	err = MigrateDown(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	version, err = Version(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 1 {
		t.Errorf("schema version after down = %d, want 1", version)
	}
}
