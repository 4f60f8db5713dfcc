package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/fekuna/omnipos-retail-loader/pkg/database"
	"github.com/jmoiron/sqlx"
)

const inventoryColumns = `inventory_id, store_id, sku, quantity_on_hand, reorder_threshold, restock_status`

const movementColumns = `movement_id, store_id, sku, movement_type, quantity_change, quantity_before,
	quantity_after, reference_type, reference_id, created_at`

// SQLRepository serves both postgres and sqlite; the only dialect branch is
// the row-lock suffix.
type SQLRepository struct {
	DB      *sqlx.DB
	dialect database.Dialect
}

func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{DB: db, dialect: database.DialectOf(db)}
}

func (r *SQLRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.DB.BeginTxx(ctx, nil)
}

func (r *SQLRepository) SaleStoreID(ctx context.Context, saleID int64) (int64, error) {
	var storeID int64
	err := r.DB.GetContext(ctx, &storeID, r.DB.Rebind(`SELECT store_id FROM sale WHERE sale_id = ?`), saleID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: sale %d", inventory.ErrSaleNotFound, saleID)
	}
	return storeID, err
}

func (r *SQLRepository) DeliveryStoreID(ctx context.Context, deliveryID int64) (int64, error) {
	var storeID int64
	err := r.DB.GetContext(ctx, &storeID, r.DB.Rebind(`SELECT store_id FROM delivery WHERE delivery_id = ?`), deliveryID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: delivery %d", inventory.ErrDeliveryNotFound, deliveryID)
	}
	return storeID, err
}

func (r *SQLRepository) Get(ctx context.Context, storeID int64, sku string) (*model.Inventory, error) {
	return r.get(ctx, r.DB, storeID, sku, "")
}

// GetForUpdate reads the row and, on postgres, holds its lock until q
// commits or rolls back.
func (r *SQLRepository) GetForUpdate(ctx context.Context, q sqlx.ExtContext, storeID int64, sku string) (*model.Inventory, error) {
	return r.get(ctx, q, storeID, sku, r.dialect.ForUpdate())
}

func (r *SQLRepository) get(ctx context.Context, q sqlx.ExtContext, storeID int64, sku, suffix string) (*model.Inventory, error) {
	var inv model.Inventory
	query := `SELECT ` + inventoryColumns + ` FROM inventory WHERE store_id = ? AND sku = ?` + suffix
	err := sqlx.GetContext(ctx, q, &inv, q.Rebind(query), storeID, sku)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: store %d sku %s", inventory.ErrInventoryNotFound, storeID, sku)
		}
		return nil, err
	}
	return &inv, nil
}

// Insert creates the row unless (store_id, sku) already exists. The
// generated inventory_id is written back into inv.
func (r *SQLRepository) Insert(ctx context.Context, q sqlx.ExtContext, inv *model.Inventory) (bool, error) {
	query := `
        INSERT INTO inventory (store_id, sku, quantity_on_hand, reorder_threshold, restock_status)
        VALUES (:store_id, :sku, :quantity_on_hand, :reorder_threshold, :restock_status)
        ON CONFLICT (store_id, sku) DO NOTHING
        RETURNING inventory_id
    `
	bound, args, err := q.BindNamed(query, inv)
	if err != nil {
		return false, err
	}
	if err := q.QueryRowxContext(ctx, bound, args...).Scan(&inv.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create inventory: %w", err)
	}
	return true, nil
}

// UpdateLevels writes quantity, threshold and status together so the stored
// status can never drift from the values it is derived from.
func (r *SQLRepository) UpdateLevels(ctx context.Context, q sqlx.ExtContext, inv *model.Inventory) error {
	query := `
        UPDATE inventory
        SET quantity_on_hand = :quantity_on_hand,
            reorder_threshold = :reorder_threshold,
            restock_status = :restock_status
        WHERE store_id = :store_id AND sku = :sku
    `
	res, err := sqlx.NamedExecContext(ctx, q, query, inv)
	if err != nil {
		return fmt.Errorf("failed to update inventory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: store %d sku %s", inventory.ErrInventoryNotFound, inv.StoreID, inv.SKU)
	}
	return nil
}

func (r *SQLRepository) FindAll(ctx context.Context, f *dto.InventoryFilters) ([]model.Inventory, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.StoreID != nil {
		conditions = append(conditions, "store_id = :store_id")
		args["store_id"] = *f.StoreID
	}
	if f.SKU != "" {
		conditions = append(conditions, "sku = :sku")
		args["sku"] = f.SKU
	}
	if f.RestockNeeded {
		conditions = append(conditions, "restock_status = :restock_status")
		args["restock_status"] = string(model.StatusRestockNeeded)
	}

	whereClause := where(conditions)
	count, err := r.count(ctx, "SELECT count(*) FROM inventory"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + inventoryColumns + " FROM inventory" + whereClause + " ORDER BY store_id, sku" + page(f.Page, f.PageSize)

	var items []model.Inventory
	if err := r.selectNamed(ctx, &items, query, args); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *SQLRepository) LogMovement(ctx context.Context, q sqlx.ExtContext, m *model.InventoryMovement) error {
	query := `
        INSERT INTO inventory_movement (
            movement_id, store_id, sku, movement_type, quantity_change, quantity_before,
            quantity_after, reference_type, reference_id, created_at
        )
        VALUES (
            :movement_id, :store_id, :sku, :movement_type, :quantity_change, :quantity_before,
            :quantity_after, :reference_type, :reference_id, :created_at
        )
    `
	if _, err := sqlx.NamedExecContext(ctx, q, query, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.StoreID != nil {
		conditions = append(conditions, "store_id = :store_id")
		args["store_id"] = *f.StoreID
	}
	if f.SKU != "" {
		conditions = append(conditions, "sku = :sku")
		args["sku"] = f.SKU
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.ReferenceID != "" {
		conditions = append(conditions, "reference_id = :reference_id")
		args["reference_id"] = f.ReferenceID
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = f.StartDate.UTC()
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at < :end_date")
		args["end_date"] = f.EndDate.UTC()
	}

	whereClause := where(conditions)
	count, err := r.count(ctx, "SELECT count(*) FROM inventory_movement"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + movementColumns + " FROM inventory_movement" + whereClause +
		" ORDER BY created_at DESC, movement_id" + page(f.Page, f.PageSize)

	var items []model.InventoryMovement
	if err := r.selectNamed(ctx, &items, query, args); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *SQLRepository) InsertSale(ctx context.Context, q sqlx.ExtContext, sale *model.Sale) (bool, error) {
	return insertIfAbsent(ctx, q, `
        INSERT INTO sale (sale_id, store_id, sale_datetime, payment_type)
        VALUES (:sale_id, :store_id, :sale_datetime, :payment_type)
        ON CONFLICT (sale_id) DO NOTHING
    `, sale)
}

func (r *SQLRepository) InsertSaleItem(ctx context.Context, q sqlx.ExtContext, item *model.SaleItem) (bool, error) {
	return insertIfAbsent(ctx, q, `
        INSERT INTO sale_item (sale_id, sku, quantity_sold, unit_price, promo_applied, promo_discount, promo_id)
        VALUES (:sale_id, :sku, :quantity_sold, :unit_price, :promo_applied, :promo_discount, :promo_id)
        ON CONFLICT (sale_id, sku) DO NOTHING
    `, item)
}

func (r *SQLRepository) InsertReturn(ctx context.Context, q sqlx.ExtContext, ret *model.ProductReturn) (bool, error) {
	return insertIfAbsent(ctx, q, `
        INSERT INTO product_return (return_id, sale_id, sku, return_date, quantity_returned, reason_code)
        VALUES (:return_id, :sale_id, :sku, :return_date, :quantity_returned, :reason_code)
        ON CONFLICT (return_id) DO NOTHING
    `, ret)
}

func (r *SQLRepository) InsertDelivery(ctx context.Context, q sqlx.ExtContext, delivery *model.Delivery) (bool, error) {
	return insertIfAbsent(ctx, q, `
        INSERT INTO delivery (delivery_id, vendor_id, store_id, delivery_date, status)
        VALUES (:delivery_id, :vendor_id, :store_id, :delivery_date, :status)
        ON CONFLICT (delivery_id) DO NOTHING
    `, delivery)
}

func (r *SQLRepository) InsertDeliveryItem(ctx context.Context, q sqlx.ExtContext, item *model.DeliveryItem) (bool, error) {
	return insertIfAbsent(ctx, q, `
        INSERT INTO delivery_item (delivery_id, sku, quantity)
        VALUES (:delivery_id, :sku, :quantity)
        ON CONFLICT (delivery_id, sku) DO NOTHING
    `, item)
}

func insertIfAbsent(ctx context.Context, q sqlx.ExtContext, query string, arg interface{}) (bool, error) {
	res, err := sqlx.NamedExecContext(ctx, q, query, arg)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLRepository) count(ctx context.Context, query string, args map[string]interface{}) (int, error) {
	var count int
	rows, err := r.DB.NamedQueryContext(ctx, query, args)
	if err != nil {
		return 0, err
	}
	// Closed before the next query: sqlite runs on a single connection.
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

func (r *SQLRepository) selectNamed(ctx context.Context, dest interface{}, query string, args map[string]interface{}) error {
	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer nstmt.Close()
	return nstmt.SelectContext(ctx, dest, args)
}

func where(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func page(p, size int) string {
	if size <= 0 {
		return ""
	}
	if p < 1 {
		p = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", size, (p-1)*size)
}
