package model

import "time"

const (
	DeliveryCompleted = "Completed"
	DeliveryDelayed   = "Delayed"
)

var DeliveryStatuses = []string{DeliveryCompleted, DeliveryDelayed}

type Delivery struct {
	ID           int64     `db:"delivery_id"`
	VendorID     int64     `db:"vendor_id"`
	StoreID      int64     `db:"store_id"`
	DeliveryDate time.Time `db:"delivery_date"`
	Status       string    `db:"status"`
}

// DeliveryItem is keyed by (delivery_id, sku). Recording one increments
// inventory, creating the row on first delivery.
type DeliveryItem struct {
	DeliveryID int64  `db:"delivery_id"`
	SKU        string `db:"sku"`
	Quantity   int64  `db:"quantity"`
}
