package postgres

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_OrdersAndSkipsUnknownFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"V10__later.sql": {Data: []byte("SELECT 10;")},
		"V2__second.sql": {Data: []byte("SELECT 2;")},
		"README.md":      {Data: []byte("ignore me")},
		"V1__first.sql":  {Data: []byte("  SELECT 1;\n")},
	}

	migs, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migs) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migs))
	}
	if migs[0].Version != 1 || migs[1].Version != 2 || migs[2].Version != 10 {
		t.Fatalf("unexpected order: %d,%d,%d", migs[0].Version, migs[1].Version, migs[2].Version)
	}
	if migs[0].SQL != "SELECT 1;" || len(migs[0].Checksum) != 64 {
		t.Fatalf("expected trimmed sql and sha256 checksum, got %+v", migs[0])
	}
}

func TestLoadMigrations_Errors(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{
		"V1__a.sql":  {Data: []byte("SELECT 1;")},
		"V01__b.sql": {Data: []byte("SELECT 2;")},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}

	_, err = LoadMigrations(fstest.MapFS{"V1__empty.sql": {Data: []byte("   ")}})
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	migs, err := LoadMigrations(mustSub(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migs) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	for i, m := range migs {
		if m.Version != int64(i+1) {
			t.Fatalf("expected contiguous versions, got %d at %d", m.Version, i)
		}
	}
}

func mustSub(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	return sub
}
