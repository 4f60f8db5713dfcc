package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fekuna/omnipos-retail-loader/internal/loader"
	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/fekuna/omnipos-retail-loader/internal/schema"
	"github.com/jmoiron/sqlx"
)

type SQLRepository struct {
	DB *sqlx.DB

	mu         sync.Mutex
	statements map[string]string
}

func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{DB: db, statements: map[string]string{}}
}

func (r *SQLRepository) Upsert(ctx context.Context, table loader.Table, row interface{}) (bool, error) {
	res, err := r.DB.NamedExecContext(ctx, r.statement(table), row)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// statement builds, once per table, the insert-if-absent statement:
//
//	INSERT INTO t (a, b) VALUES (:a, :b) ON CONFLICT (a) DO NOTHING
func (r *SQLRepository) statement(t loader.Table) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.statements[t.Name]; ok {
		return q
	}

	params := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		params[i] = ":" + c
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		t.Name,
		strings.Join(t.Columns, ", "),
		strings.Join(params, ", "),
		strings.Join(t.ConflictKeys, ", "),
	)
	r.statements[t.Name] = q
	return q
}

func (r *SQLRepository) AssignStoreManagers(ctx context.Context) (int64, error) {
	query := r.DB.Rebind(`
        UPDATE store
        SET manager_id = (
            SELECT MIN(e.employee_id) FROM employee e
            WHERE e.store_id = store.store_id AND e.role = ?
        )
        WHERE EXISTS (
            SELECT 1 FROM employee e
            WHERE e.store_id = store.store_id AND e.role = ?
        )
    `)
	res, err := r.DB.ExecContext(ctx, query, model.RoleStoreManager, model.RoleStoreManager)
	if err != nil {
		return 0, fmt.Errorf("failed to assign store managers: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLRepository) SyncSequence(ctx context.Context, table, column string) error {
	return schema.SyncSequence(ctx, r.DB, table, column)
}
