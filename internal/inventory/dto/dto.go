package dto

import "time"

type InventoryFilters struct {
	StoreID       *int64
	SKU           string
	RestockNeeded bool
	Page          int
	PageSize      int
}

type MovementFilters struct {
	StoreID      *int64
	SKU          string
	MovementType string
	ReferenceID  string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}
