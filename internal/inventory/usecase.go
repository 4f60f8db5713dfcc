package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-loader/internal/model"
)

type UseCase interface {
	// Fact recording: the fact row and its inventory effect commit together.
	RecordSale(ctx context.Context, sale *model.Sale, items []model.SaleItem) (*Result, error)
	RecordSaleItem(ctx context.Context, item *model.SaleItem) (*Result, error)
	RecordReturn(ctx context.Context, ret *model.ProductReturn) (*Result, error)
	RecordDelivery(ctx context.Context, delivery *model.Delivery, items []model.DeliveryItem) (*Result, error)
	RecordDeliveryItem(ctx context.Context, item *model.DeliveryItem) (*Result, error)

	// Bare event handlers
	OnSaleItemRecorded(ctx context.Context, saleID int64, sku string, quantitySold int64) (*model.Inventory, error)
	OnReturnRecorded(ctx context.Context, saleID int64, sku string, quantityReturned int64) (*model.Inventory, error)
	OnDeliveryItemRecorded(ctx context.Context, deliveryID int64, sku string, quantity int64) (*model.Inventory, error)

	SetReorderThreshold(ctx context.Context, storeID int64, sku string, threshold int64) (*model.Inventory, error)

	GetInventory(ctx context.Context, storeID int64, sku string) (*model.Inventory, error)
	ListRestockNeeded(ctx context.Context, storeID *int64, page, pageSize int) ([]model.Inventory, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error)
}

// Result describes one Record* call. Recorded is false when every fact row
// already existed, in which case no inventory changed.
type Result struct {
	Recorded    bool
	Inventories []model.Inventory
}

// RestockEvent is emitted when a row moves from In Stock to Restock Needed.
type RestockEvent struct {
	EventID          string             `json:"event_id"`
	StoreID          int64              `json:"store_id"`
	SKU              string             `json:"sku"`
	QuantityOnHand   int64              `json:"quantity_on_hand"`
	ReorderThreshold int64              `json:"reorder_threshold"`
	Cause            model.MovementType `json:"cause"`
	OccurredAt       time.Time          `json:"occurred_at"`
}

type Notifier interface {
	NotifyRestockNeeded(ctx context.Context, event RestockEvent) error
}
