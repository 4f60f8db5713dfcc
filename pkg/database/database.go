package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DialectOf maps the sqlx driver name to the SQL dialect spoken by it.
func DialectOf(db *sqlx.DB) Dialect {
	switch db.DriverName() {
	case "sqlite", "sqlite3":
		return SQLite
	default:
		return Postgres
	}
}

// ForUpdate is the row-lock suffix for a SELECT. SQLite has a single writer
// and no row locks, so it gets nothing.
func (d Dialect) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func sqliteCode(err error) int {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()
	}
	return 0
}

// sqliteConstraint matches extended constraint codes, falling back to the
// message when the connection reports only the primary SQLITE_CONSTRAINT.
func sqliteConstraint(err error, extended int, text string) bool {
	code := sqliteCode(err)
	if code == extended {
		return true
	}
	return code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), text)
}

func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return pgCode(err) == pgForeignKeyViolation ||
		sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY")
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pgCode(err) == pgUniqueViolation {
		return true
	}
	return sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE") ||
		sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, "UNIQUE")
}

// IsConstraintViolation reports CHECK and NOT NULL failures.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	switch pgCode(err) {
	case pgCheckViolation, pgNotNullViolation:
		return true
	}
	return sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_CHECK, "CHECK") ||
		sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_NOTNULL, "NOT NULL")
}

// IsConnectionFatal reports errors after which the session can no longer be
// used, as opposed to errors that only concern the row being written.
func IsConnectionFatal(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
