package loader

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/fekuna/omnipos-retail-loader/internal/report"
	"github.com/fekuna/omnipos-retail-loader/internal/source"
)

var (
	storeTable = Table{
		Name:         "store",
		Columns:      []string{"store_id", "address", "city", "state", "zipcode", "operating_hours"},
		ConflictKeys: []string{"store_id"},
	}
	departmentTable = Table{
		Name:         "department",
		Columns:      []string{"department_id", "department_name"},
		ConflictKeys: []string{"department_id"},
	}
	categoryTable = Table{
		Name:         "category",
		Columns:      []string{"category_id", "category_name"},
		ConflictKeys: []string{"category_id"},
	}
	vendorTable = Table{
		Name:         "vendor",
		Columns:      []string{"vendor_id", "vendor_name", "vendor_tier"},
		ConflictKeys: []string{"vendor_id"},
	}
	returnReasonTable = Table{
		Name:         "return_reason",
		Columns:      []string{"reason_code", "description"},
		ConflictKeys: []string{"reason_code"},
	}
	employeeTable = Table{
		Name:         "employee",
		Columns:      []string{"employee_id", "first_name", "last_name", "email", "phone", "role", "store_id", "department_id"},
		ConflictKeys: []string{"employee_id"},
	}
	productTable = Table{
		Name:         "product",
		Columns:      []string{"sku", "product_name", "brand", "shelf_location", "category_id"},
		ConflictKeys: []string{"sku"},
	}
	shiftScheduleTable = Table{
		Name:         "shift_schedule",
		Columns:      []string{"schedule_id", "employee_id", "shift_date", "start_time", "end_time"},
		ConflictKeys: []string{"schedule_id"},
	}
	productPricingTable = Table{
		Name:         "product_pricing",
		Columns:      []string{"sku", "price_date", "regular_price", "promo_price"},
		ConflictKeys: []string{"sku", "price_date"},
	}
	inventoryTable = Table{
		Name:         "inventory",
		Columns:      []string{"inventory_id", "store_id", "sku", "quantity_on_hand", "reorder_threshold", "restock_status"},
		ConflictKeys: []string{"store_id", "sku"},
	}
	vendorProductTable = Table{
		Name:         "vendor_product",
		Columns:      []string{"vendor_id", "sku"},
		ConflictKeys: []string{"vendor_id", "sku"},
	}
	promotionTable = Table{
		Name:         "promotion",
		Columns:      []string{"promo_id", "sku", "start_date", "end_date", "discount_amount"},
		ConflictKeys: []string{"promo_id"},
	}
	expenseTable = Table{
		Name:         "expense",
		Columns:      []string{"store_id", "expense_date", "expense_category", "amount"},
		ConflictKeys: []string{"store_id", "expense_date", "expense_category", "amount"},
	}
)

func sales(s *source.Sources) *source.Table      { return s.Sales }
func expenses(s *source.Sources) *source.Table   { return s.Expenses }
func deliveries(s *source.Sources) *source.Table { return s.Deliveries }
func shifts(s *source.Sources) *source.Table     { return s.Shifts }

func upsert[T any](repo Repository, t Table) func(context.Context, T) (bool, error) {
	return func(ctx context.Context, row T) (bool, error) {
		return repo.Upsert(ctx, t, row)
	}
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func key(parts ...string) string { return strings.Join(parts, "\x1f") }

// truthy reads the return_exists flag.
func truthy(rec source.Record) bool {
	v, ok := rec.Get("return_exists")
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "true", "t", "yes", "y", "1", "1.0":
		return true
	}
	return false
}

// stage is a set of entities with no references between them. after runs
// once every entity of the stage is done.
type stage struct {
	steps []step
	after func(ctx context.Context, rep *report.LoadReport) error
}

// stages lists every entity in dependency order, parents first.
func (l *Loader) stages() []stage {
	return []stage{
		{steps: []step{
			&entity[model.Store]{
				name:  "Store",
				table: sales,
				coerce: func(f *fieldReader) model.Store {
					return model.Store{
						ID:             f.Int("store_id"),
						Address:        f.String("address"),
						City:           f.String("city"),
						State:          f.String("state"),
						Zipcode:        f.Key("zipcode"),
						OperatingHours: f.String("operating_hours"),
					}
				},
				key:          func(s model.Store) string { return id(s.ID) },
				write:        upsert[model.Store](l.repo, storeTable),
				serialTable:  "store",
				serialColumn: "store_id",
			},
			&entity[model.Department]{
				name:  "Department",
				table: shifts,
				coerce: func(f *fieldReader) model.Department {
					return model.Department{ID: f.Int("department_id"), Name: f.String("department_name")}
				},
				key:          func(d model.Department) string { return id(d.ID) },
				write:        upsert[model.Department](l.repo, departmentTable),
				serialTable:  "department",
				serialColumn: "department_id",
			},
			&entity[model.Category]{
				name:  "Category",
				table: sales,
				coerce: func(f *fieldReader) model.Category {
					return model.Category{ID: f.Int("category_id"), Name: f.String("category_name")}
				},
				key:          func(c model.Category) string { return id(c.ID) },
				write:        upsert[model.Category](l.repo, categoryTable),
				serialTable:  "category",
				serialColumn: "category_id",
			},
			&entity[model.Vendor]{
				name:    "Vendor",
				table:   sales,
				present: []string{"primary_vendor_id"},
				coerce: func(f *fieldReader) model.Vendor {
					return model.Vendor{
						ID:   f.Int("primary_vendor_id"),
						Name: f.String("vendor_name"),
						Tier: f.String("vendor_tier"),
					}
				},
				key:          func(v model.Vendor) string { return id(v.ID) },
				write:        upsert[model.Vendor](l.repo, vendorTable),
				serialTable:  "vendor",
				serialColumn: "vendor_id",
			},
			&entity[model.ReturnReason]{
				name:    "ReturnReason",
				table:   sales,
				present: []string{"reason_code"},
				coerce: func(f *fieldReader) model.ReturnReason {
					return model.ReturnReason{Code: f.Key("reason_code"), Description: f.OptString("description")}
				},
				key:   func(r model.ReturnReason) string { return r.Code },
				write: upsert[model.ReturnReason](l.repo, returnReasonTable),
			},
		}},
		{
			steps: []step{
				&entity[model.Employee]{
					name:  "Employee",
					table: shifts,
					coerce: func(f *fieldReader) model.Employee {
						return model.Employee{
							ID:           f.Int("employee_id"),
							FirstName:    f.String("first_name"),
							LastName:     f.String("last_name"),
							Email:        f.String("email"),
							Phone:        f.Key("phone"),
							Role:         f.String("role"),
							StoreID:      f.Int("store_id"),
							DepartmentID: f.Int("department_id"),
						}
					},
					key:          func(e model.Employee) string { return id(e.ID) },
					write:        upsert[model.Employee](l.repo, employeeTable),
					serialTable:  "employee",
					serialColumn: "employee_id",
				},
				&entity[model.Product]{
					name:  "Product",
					table: sales,
					coerce: func(f *fieldReader) model.Product {
						return model.Product{
							SKU:           f.String("sku"),
							Name:          f.String("product_name"),
							Brand:         f.String("brand"),
							ShelfLocation: f.String("shelf_location"),
							CategoryID:    f.Int("category_id"),
						}
					},
					key:   func(p model.Product) string { return p.SKU },
					write: upsert[model.Product](l.repo, productTable),
				},
			},
			after: l.assignStoreManagers,
		},
		{steps: []step{
			&entity[model.ShiftSchedule]{
				name:  "ShiftSchedule",
				table: shifts,
				coerce: func(f *fieldReader) model.ShiftSchedule {
					return model.ShiftSchedule{
						ID:         f.Int("schedule_id"),
						EmployeeID: f.Int("employee_id"),
						ShiftDate:  f.Date("shift_date"),
						StartTime:  f.Time("start_time"),
						EndTime:    f.Time("end_time"),
					}
				},
				key:          func(s model.ShiftSchedule) string { return id(s.ID) },
				write:        upsert[model.ShiftSchedule](l.repo, shiftScheduleTable),
				serialTable:  "shift_schedule",
				serialColumn: "schedule_id",
			},
			&entity[model.ProductPricing]{
				name:  "ProductPricing",
				table: sales,
				coerce: func(f *fieldReader) model.ProductPricing {
					return model.ProductPricing{
						SKU:          f.String("sku"),
						PriceDate:    f.Date("price_date"),
						RegularPrice: f.Decimal("regular_price"),
						PromoPrice:   f.OptDecimal("promo_price"),
					}
				},
				key: func(p model.ProductPricing) string {
					return key(p.SKU, p.PriceDate.Format("2006-01-02"))
				},
				write: upsert[model.ProductPricing](l.repo, productPricingTable),
			},
			&entity[model.Inventory]{
				name:    "Inventory",
				table:   sales,
				present: []string{"inventory_id", "quantity_on_hand", "reorder_threshold"},
				coerce: func(f *fieldReader) model.Inventory {
					inv := model.Inventory{
						ID:               f.Int("inventory_id"),
						StoreID:          f.Int("store_id"),
						SKU:              f.String("sku"),
						QuantityOnHand:   f.Int("quantity_on_hand"),
						ReorderThreshold: f.Int("reorder_threshold"),
					}
					inv.Refresh()
					return inv
				},
				key:          func(i model.Inventory) string { return key(id(i.StoreID), i.SKU) },
				write:        upsert[model.Inventory](l.repo, inventoryTable),
				serialTable:  "inventory",
				serialColumn: "inventory_id",
			},
			&entity[model.VendorProduct]{
				name:    "VendorProduct",
				table:   sales,
				present: []string{"primary_vendor_id"},
				coerce: func(f *fieldReader) model.VendorProduct {
					return model.VendorProduct{VendorID: f.Int("primary_vendor_id"), SKU: f.String("sku")}
				},
				key:   func(v model.VendorProduct) string { return key(id(v.VendorID), v.SKU) },
				write: upsert[model.VendorProduct](l.repo, vendorProductTable),
			},
			&entity[model.Promotion]{
				name:    "Promotion",
				table:   sales,
				present: []string{"promo_id"},
				coerce: func(f *fieldReader) model.Promotion {
					return model.Promotion{
						ID:             f.Int("promo_id"),
						SKU:            f.String("sku"),
						StartDate:      f.OptDate("start_date"),
						EndDate:        f.OptDate("end_date"),
						DiscountAmount: f.OptDecimal("discount_amount"),
					}
				},
				key:          func(p model.Promotion) string { return id(p.ID) },
				write:        upsert[model.Promotion](l.repo, promotionTable),
				serialTable:  "promotion",
				serialColumn: "promo_id",
			},
			&entity[model.Delivery]{
				name:  "Delivery",
				table: deliveries,
				coerce: func(f *fieldReader) model.Delivery {
					return model.Delivery{
						ID:           f.Int("delivery_id"),
						VendorID:     f.Int("vendor_id"),
						StoreID:      f.Int("store_id"),
						DeliveryDate: f.Date("delivery_date"),
						Status:       f.Enum("status", model.DeliveryStatuses),
					}
				},
				key: func(d model.Delivery) string { return id(d.ID) },
				write: func(ctx context.Context, d model.Delivery) (bool, error) {
					res, err := l.uc.RecordDelivery(ctx, &d, nil)
					if err != nil {
						return false, err
					}
					return res.Recorded, nil
				},
				serialTable:  "delivery",
				serialColumn: "delivery_id",
			},
			&entity[model.Sale]{
				name:  "Sale",
				table: sales,
				coerce: func(f *fieldReader) model.Sale {
					return model.Sale{
						ID:           f.Int("sale_id"),
						StoreID:      f.Int("store_id"),
						SaleDatetime: f.Timestamp("sale_datetime"),
						PaymentType:  f.Enum("payment_type", model.PaymentTypes),
					}
				},
				key: func(s model.Sale) string { return id(s.ID) },
				write: func(ctx context.Context, s model.Sale) (bool, error) {
					res, err := l.uc.RecordSale(ctx, &s, nil)
					if err != nil {
						return false, err
					}
					return res.Recorded, nil
				},
				serialTable:  "sale",
				serialColumn: "sale_id",
			},
			&entity[model.Expense]{
				name:  "Expense",
				table: expenses,
				coerce: func(f *fieldReader) model.Expense {
					return model.Expense{
						StoreID:     f.Int("store_id"),
						ExpenseDate: f.Date("expense_date"),
						Category:    f.Enum("expense_category", model.ExpenseCategories),
						Amount:      f.Decimal("amount"),
					}
				},
				key: func(e model.Expense) string {
					return key(id(e.StoreID), e.ExpenseDate.Format("2006-01-02"), e.Category, e.Amount.String())
				},
				write: upsert[model.Expense](l.repo, expenseTable),
			},
		}},
		{steps: []step{
			&entity[model.DeliveryItem]{
				name:  "DeliveryItem",
				table: deliveries,
				coerce: func(f *fieldReader) model.DeliveryItem {
					return model.DeliveryItem{
						DeliveryID: f.Int("delivery_id"),
						SKU:        f.String("sku"),
						Quantity:   f.Int("delivered_quantity"),
					}
				},
				key: func(d model.DeliveryItem) string { return key(id(d.DeliveryID), d.SKU) },
				write: func(ctx context.Context, d model.DeliveryItem) (bool, error) {
					res, err := l.uc.RecordDeliveryItem(ctx, &d)
					if err != nil {
						return false, err
					}
					return res.Recorded, nil
				},
			},
		}},
		{steps: []step{
			&entity[model.SaleItem]{
				name:  "SaleItem",
				table: sales,
				coerce: func(f *fieldReader) model.SaleItem {
					return model.SaleItem{
						SaleID:        f.Int("sale_id"),
						SKU:           f.String("sku"),
						QuantitySold:  f.Int("quantity_sold"),
						UnitPrice:     f.Decimal("unit_price"),
						PromoApplied:  f.Bool("promo_applied"),
						PromoDiscount: f.OptDecimal("promo_discount"),
						PromoID:       f.OptInt("promo_id"),
					}
				},
				key: func(s model.SaleItem) string { return key(id(s.SaleID), s.SKU) },
				write: func(ctx context.Context, s model.SaleItem) (bool, error) {
					res, err := l.uc.RecordSaleItem(ctx, &s)
					if err != nil {
						return false, err
					}
					return res.Recorded, nil
				},
			},
		}},
		{steps: []step{
			&entity[model.ProductReturn]{
				name:    "ProductReturn",
				table:   sales,
				present: []string{"return_id"},
				when:    truthy,
				coerce: func(f *fieldReader) model.ProductReturn {
					return model.ProductReturn{
						ID:               f.Int("return_id"),
						SaleID:           f.Int("sale_id"),
						SKU:              f.String("sku"),
						ReturnDate:       f.Date("return_date"),
						QuantityReturned: f.Int("quantity_returned"),
						ReasonCode:       f.OptKey("reason_code"),
					}
				},
				key: func(r model.ProductReturn) string { return id(r.ID) },
				write: func(ctx context.Context, r model.ProductReturn) (bool, error) {
					res, err := l.uc.RecordReturn(ctx, &r)
					if err != nil {
						return false, err
					}
					return res.Recorded, nil
				},
				serialTable:  "product_return",
				serialColumn: "return_id",
			},
		}},
	}
}

func (l *Loader) assignStoreManagers(ctx context.Context, rep *report.LoadReport) error {
	n, err := l.repo.AssignStoreManagers(ctx)
	if err != nil {
		return fmt.Errorf("store managers: %w", err)
	}
	rep.ManagersAssigned = n
	return nil
}
