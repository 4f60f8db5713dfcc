package inventory

import (
	"context"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/jmoiron/sqlx"
)

// Repository methods that take a sqlx.ExtContext run against whatever unit of
// work the caller passes: the pool for reads, a transaction for writes.
type Repository interface {
	// Transaction support
	BeginTx(ctx context.Context) (*sqlx.Tx, error)

	// Store resolution
	SaleStoreID(ctx context.Context, saleID int64) (int64, error)
	DeliveryStoreID(ctx context.Context, deliveryID int64) (int64, error)

	// Inventory rows
	Get(ctx context.Context, storeID int64, sku string) (*model.Inventory, error)
	GetForUpdate(ctx context.Context, q sqlx.ExtContext, storeID int64, sku string) (*model.Inventory, error)
	Insert(ctx context.Context, q sqlx.ExtContext, inv *model.Inventory) (bool, error)
	UpdateLevels(ctx context.Context, q sqlx.ExtContext, inv *model.Inventory) error
	FindAll(ctx context.Context, filters *dto.InventoryFilters) ([]model.Inventory, int, error)

	// Movements / Audit
	LogMovement(ctx context.Context, q sqlx.ExtContext, movement *model.InventoryMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error)

	// Fact rows; each reports whether the row was new
	InsertSale(ctx context.Context, q sqlx.ExtContext, sale *model.Sale) (bool, error)
	InsertSaleItem(ctx context.Context, q sqlx.ExtContext, item *model.SaleItem) (bool, error)
	InsertReturn(ctx context.Context, q sqlx.ExtContext, ret *model.ProductReturn) (bool, error)
	InsertDelivery(ctx context.Context, q sqlx.ExtContext, delivery *model.Delivery) (bool, error)
	InsertDeliveryItem(ctx context.Context, q sqlx.ExtContext, item *model.DeliveryItem) (bool, error)
}
