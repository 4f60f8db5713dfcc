package model

import "time"

type RestockStatus string

const (
	StatusInStock       RestockStatus = "In Stock"
	StatusRestockNeeded RestockStatus = "Restock Needed"
)

// DefaultReorderThreshold applies to inventory rows created implicitly by
// the first delivery of a SKU to a store.
const DefaultReorderThreshold = 10

// DeriveRestockStatus is the only source of truth for restock status.
func DeriveRestockStatus(quantityOnHand, reorderThreshold int64) RestockStatus {
	if quantityOnHand <= reorderThreshold {
		return StatusRestockNeeded
	}
	return StatusInStock
}

type Inventory struct {
	ID               int64         `db:"inventory_id" json:"inventory_id"`
	StoreID          int64         `db:"store_id" json:"store_id"`
	SKU              string        `db:"sku" json:"sku"`
	QuantityOnHand   int64         `db:"quantity_on_hand" json:"quantity_on_hand"`
	ReorderThreshold int64         `db:"reorder_threshold" json:"reorder_threshold"`
	RestockStatus    RestockStatus `db:"restock_status" json:"restock_status"`
}

// Apply adds delta to the on-hand quantity and re-derives the status.
func (i *Inventory) Apply(delta int64) {
	i.QuantityOnHand += delta
	i.Refresh()
}

// SetThreshold replaces the reorder threshold and re-derives the status.
func (i *Inventory) SetThreshold(threshold int64) {
	i.ReorderThreshold = threshold
	i.Refresh()
}

func (i *Inventory) Refresh() {
	i.RestockStatus = DeriveRestockStatus(i.QuantityOnHand, i.ReorderThreshold)
}

func (i *Inventory) NeedsRestock() bool {
	return i.RestockStatus == StatusRestockNeeded
}

type MovementType string

const (
	MovementSale      MovementType = "sale"
	MovementReturn    MovementType = "return"
	MovementDelivery  MovementType = "delivery"
	MovementThreshold MovementType = "threshold"
)

type InventoryMovement struct {
	ID             string       `db:"movement_id" json:"movement_id"`
	StoreID        int64        `db:"store_id" json:"store_id"`
	SKU            string       `db:"sku" json:"sku"`
	MovementType   MovementType `db:"movement_type" json:"movement_type"`
	QuantityChange int64        `db:"quantity_change" json:"quantity_change"`
	QuantityBefore int64        `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int64        `db:"quantity_after" json:"quantity_after"`
	ReferenceType  *string      `db:"reference_type" json:"reference_type"`
	ReferenceID    *string      `db:"reference_id" json:"reference_id"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
