package schema_test

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-retail-loader/internal/schema"
	"github.com/fekuna/omnipos-retail-loader/internal/testutil"
	"github.com/fekuna/omnipos-retail-loader/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	require.NoError(t, schema.Migrate(ctx, db))
	require.NoError(t, schema.Migrate(ctx, db))

	for _, table := range schema.Tables {
		n, err := schema.Count(ctx, db, table)
		require.NoError(t, err, table)
		assert.Zero(t, n, table)
	}
}

func TestMigrate_EnforcesRestockStatusCheck(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.MustExec(t, db,
		`INSERT INTO store (store_id, address, city, state, zipcode, operating_hours) VALUES (1, 'a', 'c', 's', '1', 'h')`,
		`INSERT INTO category (category_id, category_name) VALUES (1, 'Dairy')`,
		`INSERT INTO product (sku, product_name, brand, shelf_location, category_id) VALUES ('MILK', 'Milk', 'B', 'A1', 1)`,
	)

	_, err := db.Exec(`INSERT INTO inventory (store_id, sku, quantity_on_hand, reorder_threshold, restock_status) VALUES (1, 'MILK', 5, 1, 'Maybe')`)
	require.Error(t, err)
	assert.True(t, database.IsConstraintViolation(err))
}

func TestMigrate_EnforcesForeignKeys(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := db.Exec(`INSERT INTO employee (employee_id, first_name, last_name, email, phone, role, store_id, department_id) VALUES (1, 'a', 'b', 'e', 'p', 'Cashier', 99, NULL)`)
	require.Error(t, err)
	assert.True(t, database.IsForeignKeyViolation(err))
}

func TestSyncSequence_NoopOnSQLite(t *testing.T) {
	db := testutil.NewDB(t)
	assert.NoError(t, schema.SyncSequence(context.Background(), db, "inventory", "inventory_id"))
}
