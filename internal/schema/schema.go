package schema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-retail-loader/pkg/database"
	"github.com/jmoiron/sqlx"
)

//go:embed postgres.sql
var postgresSQL string

//go:embed sqlite.sql
var sqliteSQL string

// Tables lists every table in dependency order, parents first.
var Tables = []string{
	"store",
	"department",
	"employee",
	"shift_schedule",
	"category",
	"product",
	"product_pricing",
	"inventory",
	"inventory_movement",
	"vendor",
	"vendor_product",
	"delivery",
	"delivery_item",
	"promotion",
	"sale",
	"sale_item",
	"expense",
	"return_reason",
	"product_return",
}

// Migrate creates every table that does not exist yet. Safe to run repeatedly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	ddl := postgresSQL
	if database.DialectOf(db) == database.SQLite {
		ddl = sqliteSQL
	}

	for _, stmt := range statements(ddl) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w\n%s", err, stmt)
		}
	}
	return nil
}

func statements(ddl string) []string {
	var out []string
	for _, part := range strings.Split(ddl, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SyncSequence moves a postgres serial sequence past the largest id present,
// so rows loaded with explicit ids never collide with generated ones.
// SQLite derives rowids from the table itself and needs nothing.
func SyncSequence(ctx context.Context, db *sqlx.DB, table, column string) error {
	if database.DialectOf(db) != database.Postgres {
		return nil
	}
	query := fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%[1]s', '%[2]s'), COALESCE((SELECT MAX(%[2]s) FROM %[1]s), 0) + 1, false)`,
		table, column,
	)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sync sequence %s.%s: %w", table, column, err)
	}
	return nil
}

// Count returns the number of rows in table. Table names come from Tables.
func Count(ctx context.Context, db sqlx.QueryerContext, table string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, db, &n, "SELECT count(*) FROM "+table); err != nil {
		return 0, err
	}
	return n, nil
}
