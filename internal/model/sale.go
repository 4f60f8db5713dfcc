package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentCash       = "Cash"
	PaymentCreditCard = "Credit Card"
	PaymentMobile     = "Mobile"
)

var PaymentTypes = []string{PaymentCash, PaymentCreditCard, PaymentMobile}

type Sale struct {
	ID           int64     `db:"sale_id"`
	StoreID      int64     `db:"store_id"`
	SaleDatetime time.Time `db:"sale_datetime"`
	PaymentType  string    `db:"payment_type"`
}

// SaleItem is keyed by (sale_id, sku). Recording one decrements inventory.
type SaleItem struct {
	SaleID        int64               `db:"sale_id"`
	SKU           string              `db:"sku"`
	QuantitySold  int64               `db:"quantity_sold"`
	UnitPrice     decimal.Decimal     `db:"unit_price"`
	PromoApplied  bool                `db:"promo_applied"`
	PromoDiscount decimal.NullDecimal `db:"promo_discount"`
	PromoID       *int64              `db:"promo_id"`
}

type ReturnReason struct {
	Code        string  `db:"reason_code"`
	Description *string `db:"description"`
}

// ProductReturn reverses part of an earlier sale. Recording one increments
// inventory at the sale's store.
type ProductReturn struct {
	ID               int64     `db:"return_id"`
	SaleID           int64     `db:"sale_id"`
	SKU              string    `db:"sku"`
	ReturnDate       time.Time `db:"return_date"`
	QuantityReturned int64     `db:"quantity_returned"`
	ReasonCode       *string   `db:"reason_code"`
}
