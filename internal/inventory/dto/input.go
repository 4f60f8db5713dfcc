package dto

import (
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/shopspring/decimal"
)

// SaleRecorded is the payload of a SaleRecorded event.
type SaleRecorded struct {
	SaleID       int64           `json:"sale_id"`
	StoreID      int64           `json:"store_id"`
	SaleDatetime time.Time       `json:"sale_datetime"`
	PaymentType  string          `json:"payment_type"`
	Items        []SaleItemInput `json:"items"`
}

type SaleItemInput struct {
	SKU           string              `json:"sku"`
	QuantitySold  int64               `json:"quantity_sold"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	PromoApplied  bool                `json:"promo_applied"`
	PromoDiscount decimal.NullDecimal `json:"promo_discount"`
	PromoID       *int64              `json:"promo_id"`
}

func (e *SaleRecorded) Model() (*model.Sale, []model.SaleItem) {
	sale := &model.Sale{
		ID:           e.SaleID,
		StoreID:      e.StoreID,
		SaleDatetime: e.SaleDatetime,
		PaymentType:  e.PaymentType,
	}
	items := make([]model.SaleItem, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, model.SaleItem{
			SaleID:        e.SaleID,
			SKU:           it.SKU,
			QuantitySold:  it.QuantitySold,
			UnitPrice:     it.UnitPrice,
			PromoApplied:  it.PromoApplied,
			PromoDiscount: it.PromoDiscount,
			PromoID:       it.PromoID,
		})
	}
	return sale, items
}

// ReturnRecorded is the payload of a ReturnRecorded event.
type ReturnRecorded struct {
	ReturnID         int64     `json:"return_id"`
	SaleID           int64     `json:"sale_id"`
	SKU              string    `json:"sku"`
	ReturnDate       time.Time `json:"return_date"`
	QuantityReturned int64     `json:"quantity_returned"`
	ReasonCode       *string   `json:"reason_code"`
}

func (e *ReturnRecorded) Model() *model.ProductReturn {
	return &model.ProductReturn{
		ID:               e.ReturnID,
		SaleID:           e.SaleID,
		SKU:              e.SKU,
		ReturnDate:       e.ReturnDate,
		QuantityReturned: e.QuantityReturned,
		ReasonCode:       e.ReasonCode,
	}
}

// DeliveryRecorded is the payload of a DeliveryRecorded event.
type DeliveryRecorded struct {
	DeliveryID   int64               `json:"delivery_id"`
	VendorID     int64               `json:"vendor_id"`
	StoreID      int64               `json:"store_id"`
	DeliveryDate time.Time           `json:"delivery_date"`
	Status       string              `json:"status"`
	Items        []DeliveryItemInput `json:"items"`
}

type DeliveryItemInput struct {
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

func (e *DeliveryRecorded) Model() (*model.Delivery, []model.DeliveryItem) {
	delivery := &model.Delivery{
		ID:           e.DeliveryID,
		VendorID:     e.VendorID,
		StoreID:      e.StoreID,
		DeliveryDate: e.DeliveryDate,
		Status:       e.Status,
	}
	items := make([]model.DeliveryItem, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, model.DeliveryItem{
			DeliveryID: e.DeliveryID,
			SKU:        it.SKU,
			Quantity:   it.Quantity,
		})
	}
	return delivery, items
}
