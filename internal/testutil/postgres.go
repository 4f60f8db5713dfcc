package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-retail-loader/internal/schema"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// PostgresDSNEnv names the variable that points tests at a disposable
// postgres database. Every table in it is truncated.
const PostgresDSNEnv = "RETAIL_TEST_POSTGRES_DSN"

// NewPostgresDB returns a migrated, empty postgres database with a real
// connection pool, or skips the test when PostgresDSNEnv is unset.
func NewPostgresDB(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	db.SetMaxOpenConns(16)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := schema.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(schema.Tables, ", ")+" RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}
