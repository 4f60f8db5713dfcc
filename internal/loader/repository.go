package loader

import "context"

// Table describes the target of one entity's upserts.
type Table struct {
	Name string
	// Columns are written from the row's db tags, in this order.
	Columns []string
	// ConflictKeys is the natural key; a row whose key exists is left untouched.
	ConflictKeys []string
}

type Repository interface {
	// Upsert inserts row unless its natural key already exists and reports
	// whether a row was written.
	Upsert(ctx context.Context, table Table, row interface{}) (bool, error)
	// AssignStoreManagers sets each store's manager to its lowest-numbered
	// "Store Manager" employee and returns how many stores changed.
	AssignStoreManagers(ctx context.Context) (int64, error)
	SyncSequence(ctx context.Context, table, column string) error
}
