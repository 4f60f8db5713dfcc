package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/lock"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/repository"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/usecase"
	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/fekuna/omnipos-retail-loader/internal/schema"
	"github.com/fekuna/omnipos-retail-loader/internal/testutil"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingNotifier struct {
	mu     sync.Mutex
	events []inventory.RestockEvent
}

func (c *capturingNotifier) NotifyRestockNeeded(_ context.Context, ev inventory.RestockEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

type fixture struct {
	db       *sqlx.DB
	uc       inventory.UseCase
	notifier *capturingNotifier
}

func setup(t *testing.T, opts usecase.Options) *fixture {
	t.Helper()
	return newFixture(t, testutil.NewDB(t), opts, lock.NewKeyedMutex())
}

func newFixture(t *testing.T, db *sqlx.DB, opts usecase.Options, locker lock.Locker) *fixture {
	t.Helper()
	testutil.MustExec(t, db,
		`INSERT INTO store (store_id, address, city, state, zipcode, operating_hours) VALUES (1, '1 Main', 'Springfield', 'IL', '62701', '8-20')`,
		`INSERT INTO store (store_id, address, city, state, zipcode, operating_hours) VALUES (2, '2 Oak', 'Shelbyville', 'IL', '62565', '8-20')`,
		`INSERT INTO category (category_id, category_name) VALUES (1, 'Dairy')`,
		`INSERT INTO product (sku, product_name, brand, shelf_location, category_id) VALUES ('A', 'Milk', 'Farm', 'A1', 1)`,
		`INSERT INTO product (sku, product_name, brand, shelf_location, category_id) VALUES ('B', 'Butter', 'Farm', 'A2', 1)`,
		`INSERT INTO vendor (vendor_id, vendor_name, vendor_tier) VALUES (1, 'Dairy Co', 'Gold')`,
		`INSERT INTO sale (sale_id, store_id, sale_datetime, payment_type) VALUES (100, 1, '2024-01-05 10:00:00', 'Cash')`,
		`INSERT INTO delivery (delivery_id, vendor_id, store_id, delivery_date, status) VALUES (200, 1, 1, '2024-01-04', 'Completed')`,
		`INSERT INTO delivery (delivery_id, vendor_id, store_id, delivery_date, status) VALUES (201, 1, 1, '2024-01-06', 'Completed')`,
	)

	n := &capturingNotifier{}
	opts.Notifier = n
	uc := usecase.NewInventoryUseCase(repository.NewSQLRepository(db), locker, opts, logger.NewNop())
	t.Cleanup(func() { assertStatusInvariant(t, db) })
	return &fixture{db: db, uc: uc, notifier: n}
}

func defaults() usecase.Options {
	return usecase.Options{DefaultReorderThreshold: 10, AllowNegative: true}
}

func seedInventory(t *testing.T, db *sqlx.DB, storeID int64, sku string, qty, threshold int64) {
	t.Helper()
	status := model.DeriveRestockStatus(qty, threshold)
	testutil.MustExec(t, db, fmt.Sprintf(
		`INSERT INTO inventory (store_id, sku, quantity_on_hand, reorder_threshold, restock_status) VALUES (%d, '%s', %d, %d, '%s')`,
		storeID, sku, qty, threshold, status))
}

func assertStatusInvariant(t *testing.T, db *sqlx.DB) {
	var rows []model.Inventory
	require.NoError(t, db.Select(&rows, `SELECT inventory_id, store_id, sku, quantity_on_hand, reorder_threshold, restock_status FROM inventory`))
	for _, r := range rows {
		assert.Equal(t, model.DeriveRestockStatus(r.QuantityOnHand, r.ReorderThreshold), r.RestockStatus,
			"store %d sku %s", r.StoreID, r.SKU)
	}
}

func count(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	n, err := schema.Count(context.Background(), db, table)
	require.NoError(t, err)
	return n
}

func saleItem(saleID int64, sku string, qty int64) *model.SaleItem {
	return &model.SaleItem{SaleID: saleID, SKU: sku, QuantitySold: qty, UnitPrice: decimal.RequireFromString("2.50")}
}

func TestRecordDeliveryItem_FirstDeliveryCreatesInventory(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()

	res, err := f.uc.RecordDeliveryItem(ctx, &model.DeliveryItem{DeliveryID: 200, SKU: "A", Quantity: 20})
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(20), inv.QuantityOnHand)
	assert.Equal(t, int64(10), inv.ReorderThreshold)
	assert.Equal(t, model.StatusInStock, inv.RestockStatus)
	assert.NotZero(t, inv.ID)

	moves, total, err := f.uc.ListMovements(ctx, &dto.MovementFilters{SKU: "A"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, model.MovementDelivery, moves[0].MovementType)
	assert.Equal(t, int64(0), moves[0].QuantityBefore)
	assert.Equal(t, int64(20), moves[0].QuantityAfter)
	assert.Equal(t, "200", *moves[0].ReferenceID)
	assert.Empty(t, f.notifier.events)
}

func TestRecordDeliveryItem_SmallFirstDeliveryNeedsRestock(t *testing.T) {
	f := setup(t, defaults())

	_, err := f.uc.RecordDeliveryItem(context.Background(), &model.DeliveryItem{DeliveryID: 200, SKU: "B", Quantity: 4})
	require.NoError(t, err)

	inv, err := f.uc.GetInventory(context.Background(), 1, "B")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRestockNeeded, inv.RestockStatus)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "B", f.notifier.events[0].SKU)
	assert.Equal(t, int64(4), f.notifier.events[0].QuantityOnHand)
	assert.Equal(t, model.MovementDelivery, f.notifier.events[0].Cause)

	// Still below the threshold: no second event.
	_, err = f.uc.RecordDeliveryItem(context.Background(), &model.DeliveryItem{DeliveryID: 201, SKU: "B", Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, f.notifier.events, 1)
}

func TestRecordDeliveryItem_DuplicateIsNoop(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	item := &model.DeliveryItem{DeliveryID: 200, SKU: "A", Quantity: 20}

	_, err := f.uc.RecordDeliveryItem(ctx, item)
	require.NoError(t, err)
	res, err := f.uc.RecordDeliveryItem(ctx, item)
	require.NoError(t, err)
	assert.False(t, res.Recorded)

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(20), inv.QuantityOnHand)
	assert.Equal(t, 1, count(t, f.db, "delivery_item"))
}

func TestEvents_OrderIndependent(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 5, 2)
	seedInventory(t, f.db, 1, "B", 5, 2)

	_, err := f.uc.RecordDeliveryItem(ctx, &model.DeliveryItem{DeliveryID: 200, SKU: "A", Quantity: 10})
	require.NoError(t, err)
	_, err = f.uc.RecordSaleItem(ctx, saleItem(100, "A", 3))
	require.NoError(t, err)

	_, err = f.uc.RecordSaleItem(ctx, saleItem(100, "B", 3))
	require.NoError(t, err)
	_, err = f.uc.RecordDeliveryItem(ctx, &model.DeliveryItem{DeliveryID: 200, SKU: "B", Quantity: 10})
	require.NoError(t, err)

	a, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	b, err := f.uc.GetInventory(ctx, 1, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(12), a.QuantityOnHand)
	assert.Equal(t, a.QuantityOnHand, b.QuantityOnHand)
	assert.Equal(t, a.RestockStatus, b.RestockStatus)
}

func TestRecordSaleItem_MissingInventoryWritesNothing(t *testing.T) {
	f := setup(t, defaults())

	_, err := f.uc.RecordSaleItem(context.Background(), saleItem(100, "A", 1))
	require.ErrorIs(t, err, inventory.ErrInventoryNotFound)

	assert.Zero(t, count(t, f.db, "inventory"))
	assert.Zero(t, count(t, f.db, "sale_item"))
	assert.Zero(t, count(t, f.db, "inventory_movement"))
}

func TestRecordSaleItem_UnknownSale(t *testing.T) {
	f := setup(t, defaults())

	_, err := f.uc.RecordSaleItem(context.Background(), saleItem(999, "A", 1))
	assert.ErrorIs(t, err, inventory.ErrSaleNotFound)
}

func TestRecordSaleItem_InvalidQuantity(t *testing.T) {
	f := setup(t, defaults())

	_, err := f.uc.RecordSaleItem(context.Background(), saleItem(100, "A", 0))
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestRecordSaleItem_DecrementsAndNotifiesOnTransition(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 12, 10)

	res, err := f.uc.RecordSaleItem(ctx, saleItem(100, "A", 2))
	require.NoError(t, err)
	require.Len(t, res.Inventories, 1)
	assert.Equal(t, int64(10), res.Inventories[0].QuantityOnHand)
	assert.Equal(t, model.StatusRestockNeeded, res.Inventories[0].RestockStatus)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "A", f.notifier.events[0].SKU)
	assert.Equal(t, model.MovementSale, f.notifier.events[0].Cause)

	again, err := f.uc.RecordSaleItem(ctx, saleItem(100, "A", 2))
	require.NoError(t, err)
	assert.False(t, again.Recorded, "rerun of the same sale item is idempotent")

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(10), inv.QuantityOnHand)
	assert.Len(t, f.notifier.events, 1)
}

func TestRecordSaleItem_NegativeAllowed(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 1, 0)

	_, err := f.uc.RecordSaleItem(ctx, saleItem(100, "A", 3))
	require.NoError(t, err)

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(-2), inv.QuantityOnHand)
	assert.Equal(t, model.StatusRestockNeeded, inv.RestockStatus)
}

func TestRecordSaleItem_NegativeRejected(t *testing.T) {
	f := setup(t, usecase.Options{DefaultReorderThreshold: 10, AllowNegative: false})
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 1, 0)

	_, err := f.uc.RecordSaleItem(ctx, saleItem(100, "A", 3))
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inv.QuantityOnHand)
	assert.Zero(t, count(t, f.db, "sale_item"))
}

func TestRecordReturn_IncrementsSaleStore(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 8, 10)
	seedInventory(t, f.db, 2, "A", 50, 10)

	ret := &model.ProductReturn{ID: 1, SaleID: 100, SKU: "A", ReturnDate: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), QuantityReturned: 3}
	res, err := f.uc.RecordReturn(ctx, ret)
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(11), inv.QuantityOnHand)
	assert.Equal(t, model.StatusInStock, inv.RestockStatus)

	other, err := f.uc.GetInventory(ctx, 2, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(50), other.QuantityOnHand, "only the sale's store changes")

	res, err = f.uc.RecordReturn(ctx, ret)
	require.NoError(t, err)
	assert.False(t, res.Recorded)
}

func TestRecordReturn_MissingInventory(t *testing.T) {
	f := setup(t, defaults())

	_, err := f.uc.RecordReturn(context.Background(), &model.ProductReturn{ID: 1, SaleID: 100, SKU: "B", ReturnDate: time.Now(), QuantityReturned: 1})
	require.ErrorIs(t, err, inventory.ErrInventoryNotFound)
	assert.Zero(t, count(t, f.db, "product_return"))
}

func TestRecordSale_AllOrNothing(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 30, 10)

	sale := &model.Sale{ID: 101, StoreID: 1, SaleDatetime: time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC), PaymentType: model.PaymentMobile}
	_, err := f.uc.RecordSale(ctx, sale, []model.SaleItem{*saleItem(0, "A", 5), *saleItem(0, "B", 1)})
	require.ErrorIs(t, err, inventory.ErrInventoryNotFound)

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(30), inv.QuantityOnHand)
	assert.Equal(t, 1, count(t, f.db, "sale"), "only the fixture sale remains")
	assert.Zero(t, count(t, f.db, "sale_item"))

	seedInventory(t, f.db, 1, "B", 3, 1)
	res, err := f.uc.RecordSale(ctx, sale, []model.SaleItem{*saleItem(0, "A", 5), *saleItem(0, "B", 1)})
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.Len(t, res.Inventories, 2)
	assert.Equal(t, 2, count(t, f.db, "sale_item"))
}

func TestRecordDelivery_HeaderAndItems(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()

	d := &model.Delivery{ID: 300, VendorID: 1, StoreID: 2, DeliveryDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Status: model.DeliveryDelayed}
	items := []model.DeliveryItem{{SKU: "A", Quantity: 15}, {SKU: "B", Quantity: 5}}

	res, err := f.uc.RecordDelivery(ctx, d, items)
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	res, err = f.uc.RecordDelivery(ctx, d, items)
	require.NoError(t, err)
	assert.False(t, res.Recorded)

	a, err := f.uc.GetInventory(ctx, 2, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(15), a.QuantityOnHand)

	restock, total, err := f.uc.ListRestockNeeded(ctx, nil, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "B", restock[0].SKU)
}

func TestOnDeliveryItemRecorded_ConcurrentIncrements(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 0, 10)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.OnDeliveryItemRecorded(ctx, 200, "A", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(n), inv.QuantityOnHand)
	assert.Equal(t, model.StatusInStock, inv.RestockStatus)

	_, total, err := f.uc.ListMovements(ctx, &dto.MovementFilters{MovementType: string(model.MovementDelivery)})
	require.NoError(t, err)
	assert.Equal(t, n, total)
}

func TestOnDeliveryItemRecorded_ConcurrentFirstDelivery(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.OnDeliveryItemRecorded(ctx, 201, "B", 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	inv, err := f.uc.GetInventory(ctx, 1, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(2*n), inv.QuantityOnHand)
	assert.Equal(t, 1, count(t, f.db, "inventory"))
}

func TestBareHandlers(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 20, 10)

	inv, err := f.uc.OnSaleItemRecorded(ctx, 100, "A", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(16), inv.QuantityOnHand)

	inv, err = f.uc.OnReturnRecorded(ctx, 100, "A", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(17), inv.QuantityOnHand)

	_, err = f.uc.OnSaleItemRecorded(ctx, 100, "B", 1)
	assert.ErrorIs(t, err, inventory.ErrInventoryNotFound)
	_, err = f.uc.OnDeliveryItemRecorded(ctx, 999, "A", 1)
	assert.ErrorIs(t, err, inventory.ErrDeliveryNotFound)
}

func TestSetReorderThreshold(t *testing.T) {
	f := setup(t, defaults())
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 15, 10)

	inv, err := f.uc.SetReorderThreshold(ctx, 1, "A", 20)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRestockNeeded, inv.RestockStatus)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, model.MovementThreshold, f.notifier.events[0].Cause)

	inv, err = f.uc.SetReorderThreshold(ctx, 1, "A", 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInStock, inv.RestockStatus)

	_, err = f.uc.SetReorderThreshold(ctx, 1, "A", -1)
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	_, err = f.uc.SetReorderThreshold(ctx, 2, "A", 5)
	assert.ErrorIs(t, err, inventory.ErrInventoryNotFound)

	moves, total, err := f.uc.ListMovements(ctx, &dto.MovementFilters{MovementType: string(model.MovementThreshold), PageSize: 1, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, moves, 1)
	assert.Zero(t, moves[0].QuantityChange)
}
