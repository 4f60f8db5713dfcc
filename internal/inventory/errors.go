package inventory

import "errors"

var (
	// ErrInventoryNotFound means a sale or return touched a (store, sku)
	// pair that has no inventory row. Nothing is written in that case.
	ErrInventoryNotFound = errors.New("inventory not found")
	ErrSaleNotFound      = errors.New("sale not found")
	ErrDeliveryNotFound  = errors.New("delivery not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)
