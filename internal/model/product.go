package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is keyed by SKU and never rewritten by a later load.
type Product struct {
	SKU           string `db:"sku" json:"sku"`
	Name          string `db:"product_name" json:"product_name"`
	Brand         string `db:"brand" json:"brand"`
	ShelfLocation string `db:"shelf_location" json:"shelf_location"`
	CategoryID    int64  `db:"category_id" json:"category_id"`
}

type ProductPricing struct {
	SKU          string              `db:"sku"`
	PriceDate    time.Time           `db:"price_date"`
	RegularPrice decimal.Decimal     `db:"regular_price"`
	PromoPrice   decimal.NullDecimal `db:"promo_price"` // Nullable
}

type Vendor struct {
	ID   int64  `db:"vendor_id"`
	Name string `db:"vendor_name"`
	Tier string `db:"vendor_tier"`
}

type VendorProduct struct {
	VendorID int64  `db:"vendor_id"`
	SKU      string `db:"sku"`
}

type Promotion struct {
	ID             int64               `db:"promo_id"`
	SKU            string              `db:"sku"`
	StartDate      *time.Time          `db:"start_date"`
	EndDate        *time.Time          `db:"end_date"`
	DiscountAmount decimal.NullDecimal `db:"discount_amount"`
}
