package migrate

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/AES-Git/DMG/db/migrations"
)

func openLazyDB(t *testing.T) *sql.DB {
	t.Helper()
	// sql.Open does not dial; goose only needs a handle to build its provider.
	db, err := sql.Open("pgx", "postgres://storefront@127.0.0.1:1/storefront")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewRejectsNilPool(t *testing.T) {
	if _, err := New(nil, migrations.FS, 0, nil); err == nil {
		t.Fatalf("expected error for nil pool")
	}
}

func TestRunnerListsEmbeddedMigrations(t *testing.T) {
	r, err := newRunner(openLazyDB(t), migrations.FS, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newRunner: %v", err)
	}
	versions := r.Versions()
	if len(versions) < 2 || versions[0] != 1 || versions[1] != 2 {
		t.Fatalf("unexpected versions %v", versions)
	}
}

func TestRunnerRejectsMissingFilesystem(t *testing.T) {
	if _, err := newRunner(openLazyDB(t), nil, 0, nil); err == nil {
		t.Fatalf("expected error for nil filesystem")
	}
}

func TestRunnerRejectsEmptyFilesystem(t *testing.T) {
	if _, err := newRunner(openLazyDB(t), fstest.MapFS{}, 0, nil); err == nil {
		t.Fatalf("expected error when no migrations are present")
	}
}
