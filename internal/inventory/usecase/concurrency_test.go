package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/lock"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/usecase"
	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/fekuna/omnipos-retail-loader/internal/testutil"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepository keeps inventory in a map with no isolation of its own: a
// read and the write that follows it can interleave with other callers, so
// only the use case's locker prevents lost updates.
type memoryRepository struct {
	inventory.Repository

	// txDB hands out transactions that nothing is written through. Its pool
	// is unbounded so transactions never queue on a connection.
	txDB *sqlx.DB
	// hideOnce makes the next GetForUpdate miss an existing row, as if a
	// concurrent writer created it after the read.
	hideOnce bool

	mu          sync.Mutex
	rows        map[string]model.Inventory
	nextID      int64
	inFlight    map[string]int
	maxInFlight int
	movements   []model.InventoryMovement
}

func newMemoryRepository(t *testing.T) *memoryRepository {
	t.Helper()
	db, err := sqlx.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &memoryRepository{
		txDB:     db,
		rows:     map[string]model.Inventory{},
		inFlight: map[string]int{},
	}
}

func (r *memoryRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.txDB.BeginTxx(ctx, nil)
}

func (r *memoryRepository) DeliveryStoreID(context.Context, int64) (int64, error) {
	return 1, nil
}

func (r *memoryRepository) Get(_ context.Context, storeID int64, sku string) (*model.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.rows[lock.Key(storeID, sku)]
	if !ok {
		return nil, inventory.ErrInventoryNotFound
	}
	return &inv, nil
}

func (r *memoryRepository) GetForUpdate(_ context.Context, _ sqlx.ExtContext, storeID int64, sku string) (*model.Inventory, error) {
	key := lock.Key(storeID, sku)

	r.mu.Lock()
	r.inFlight[key]++
	if r.inFlight[key] > r.maxInFlight {
		r.maxInFlight = r.inFlight[key]
	}
	inv, ok := r.rows[key]
	if r.hideOnce {
		r.hideOnce, ok = false, false
	}
	r.mu.Unlock()

	// Widen the window between the read and the write.
	time.Sleep(200 * time.Microsecond)

	if !ok {
		return nil, inventory.ErrInventoryNotFound
	}
	return &inv, nil
}

func (r *memoryRepository) Insert(_ context.Context, _ sqlx.ExtContext, inv *model.Inventory) (bool, error) {
	key := lock.Key(inv.StoreID, inv.SKU)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[key]; ok {
		// The caller reads the row again.
		r.inFlight[key]--
		return false, nil
	}
	r.nextID++
	inv.ID = r.nextID
	r.rows[key] = *inv
	return true, nil
}

func (r *memoryRepository) UpdateLevels(_ context.Context, _ sqlx.ExtContext, inv *model.Inventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[lock.Key(inv.StoreID, inv.SKU)] = *inv
	return nil
}

func (r *memoryRepository) LogMovement(_ context.Context, _ sqlx.ExtContext, m *model.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[lock.Key(m.StoreID, m.SKU)]--
	r.movements = append(r.movements, *m)
	return nil
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

func TestOnDeliveryItemRecorded_LockerSerializesReadModifyWrite(t *testing.T) {
	repo := newMemoryRepository(t)
	uc := usecase.NewInventoryUseCase(repo, lock.NewKeyedMutex(), defaults(), logger.NewNop())
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.OnDeliveryItemRecorded(ctx, 200, "A", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	inv, err := uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(n), inv.QuantityOnHand)
	assert.Equal(t, model.StatusInStock, inv.RestockStatus)
	assert.Equal(t, 1, repo.maxInFlight, "two writers held the same row at once")
	assert.Len(t, repo.movements, n)
}

func TestOnDeliveryItemRecorded_RowCreatedConcurrently(t *testing.T) {
	repo := newMemoryRepository(t)
	repo.rows[lock.Key(1, "A")] = model.Inventory{ID: 1, StoreID: 1, SKU: "A", QuantityOnHand: 5, ReorderThreshold: 10, RestockStatus: model.StatusRestockNeeded}
	repo.nextID = 1
	repo.hideOnce = true
	uc := usecase.NewInventoryUseCase(repo, lock.NewKeyedMutex(), defaults(), logger.NewNop())

	inv, err := uc.OnDeliveryItemRecorded(context.Background(), 200, "A", 8)
	require.NoError(t, err)

	assert.Equal(t, int64(1), inv.ID)
	assert.Equal(t, int64(13), inv.QuantityOnHand)
	assert.Equal(t, model.StatusInStock, inv.RestockStatus)
	require.Len(t, repo.movements, 1)
	assert.Equal(t, int64(5), repo.movements[0].QuantityBefore)
	assert.Equal(t, int64(13), repo.movements[0].QuantityAfter)
}

// The postgres tests run without an in-process locker, so row locks and the
// unique (store_id, sku) index are all that keep concurrent writers apart.

func TestPostgres_ConcurrentIncrementsWithRowLocks(t *testing.T) {
	f := newFixture(t, testutil.NewPostgresDB(t), defaults(), noopLocker{})
	ctx := context.Background()
	seedInventory(t, f.db, 1, "A", 0, 10)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.OnDeliveryItemRecorded(ctx, 200, "A", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	inv, err := f.uc.GetInventory(ctx, 1, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(n), inv.QuantityOnHand)

	_, total, err := f.uc.ListMovements(ctx, &dto.MovementFilters{SKU: "A"})
	require.NoError(t, err)
	assert.Equal(t, n, total)
}

func TestPostgres_ConcurrentFirstDelivery(t *testing.T) {
	f := newFixture(t, testutil.NewPostgresDB(t), defaults(), noopLocker{})
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
