package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fekuna/omnipos-retail-loader/internal/schema"
	"github.com/fekuna/omnipos-retail-loader/pkg/database/sqlite"
	"github.com/jmoiron/sqlx"
)

// NewDB returns a migrated sqlite database living in the test's temp dir.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := sqlite.NewSQLite(filepath.Join(t.TempDir(), "retail.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := schema.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// MustExec runs fixture statements, failing the test on the first error.
func MustExec(t testing.TB, db *sqlx.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}
