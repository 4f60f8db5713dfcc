package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/lock"
	"github.com/fekuna/omnipos-retail-loader/internal/metrics"
	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Options struct {
	// DefaultReorderThreshold is given to rows created by a first delivery.
	// Zero means model.DefaultReorderThreshold.
	DefaultReorderThreshold int64
	// AllowNegative lets a sale drive quantity_on_hand below zero.
	AllowNegative bool
	Notifier      inventory.Notifier
	Metrics       *metrics.Recorder
}

type inventoryUseCase struct {
	repo   inventory.Repository
	locker lock.Locker
	opts   Options
	logger logger.ZapLogger
	now    func() time.Time
}

func NewInventoryUseCase(repo inventory.Repository, locker lock.Locker, opts Options, log logger.ZapLogger) inventory.UseCase {
	if opts.DefaultReorderThreshold <= 0 {
		opts.DefaultReorderThreshold = model.DefaultReorderThreshold
	}
	return &inventoryUseCase{
		repo:   repo,
		locker: locker,
		opts:   opts,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// change is one quantity mutation of one (store, sku) row.
type change struct {
	storeID int64
	sku     string
	delta   int64
	kind    model.MovementType
	refType string
	refID   string
	// create makes the row when it does not exist yet; only deliveries do.
	create bool
}

// unit is the state of one locked transaction.
type unit struct {
	tx      *sqlx.Tx
	touched []model.Inventory
	restock []inventory.RestockEvent
}

func (uc *inventoryUseCase) RecordSale(ctx context.Context, sale *model.Sale, items []model.SaleItem) (*inventory.Result, error) {
	for _, it := range items {
		if it.QuantitySold <= 0 {
			return nil, fmt.Errorf("%w: sale %d sku %s", inventory.ErrInvalidQuantity, sale.ID, it.SKU)
		}
	}

	storeID, err := uc.resolveSaleStore(ctx, sale)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, lock.Key(storeID, it.SKU))
	}

	result := &inventory.Result{}
	err = uc.execute(ctx, model.MovementSale, keys, func(u *unit) error {
		inserted, err := uc.repo.InsertSale(ctx, u.tx, sale)
		if err != nil {
			return fmt.Errorf("failed to insert sale %d: %w", sale.ID, err)
		}
		result.Recorded = inserted

		for i := range items {
			item := items[i]
			item.SaleID = sale.ID
			ok, err := uc.repo.InsertSaleItem(ctx, u.tx, &item)
			if err != nil {
				return fmt.Errorf("failed to insert sale item %d/%s: %w", sale.ID, item.SKU, err)
			}
			if !ok {
				continue
			}
			result.Recorded = true
			if err := uc.apply(ctx, u, saleChange(storeID, &item)); err != nil {
				return err
			}
		}
		result.Inventories = u.touched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveSaleStore prefers the store already stored for the sale over the
// one on the incoming header.
func (uc *inventoryUseCase) resolveSaleStore(ctx context.Context, sale *model.Sale) (int64, error) {
	storeID, err := uc.repo.SaleStoreID(ctx, sale.ID)
	if errors.Is(err, inventory.ErrSaleNotFound) {
		return sale.StoreID, nil
	}
	return storeID, err
}

func (uc *inventoryUseCase) RecordSaleItem(ctx context.Context, item *model.SaleItem) (*inventory.Result, error) {
	if item.QuantitySold <= 0 {
		return nil, fmt.Errorf("%w: sale %d sku %s", inventory.ErrInvalidQuantity, item.SaleID, item.SKU)
	}
	storeID, err := uc.repo.SaleStoreID(ctx, item.SaleID)
	if err != nil {
		return nil, err
	}

	result := &inventory.Result{}
	err = uc.execute(ctx, model.MovementSale, []string{lock.Key(storeID, item.SKU)}, func(u *unit) error {
		inserted, err := uc.repo.InsertSaleItem(ctx, u.tx, item)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		result.Recorded = true
		if err := uc.apply(ctx, u, saleChange(storeID, item)); err != nil {
			return err
		}
		result.Inventories = u.touched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func saleChange(storeID int64, item *model.SaleItem) change {
	return change{
		storeID: storeID,
		sku:     item.SKU,
		delta:   -item.QuantitySold,
		kind:    model.MovementSale,
		refType: "sale",
		refID:   strconv.FormatInt(item.SaleID, 10),
	}
}

func (uc *inventoryUseCase) RecordReturn(ctx context.Context, ret *model.ProductReturn) (*inventory.Result, error) {
	if ret.QuantityReturned <= 0 {
		return nil, fmt.Errorf("%w: return %d", inventory.ErrInvalidQuantity, ret.ID)
	}
	storeID, err := uc.repo.SaleStoreID(ctx, ret.SaleID)
	if err != nil {
		return nil, err
	}

	result := &inventory.Result{}
	err = uc.execute(ctx, model.MovementReturn, []string{lock.Key(storeID, ret.SKU)}, func(u *unit) error {
		inserted, err := uc.repo.InsertReturn(ctx, u.tx, ret)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		result.Recorded = true
		err = uc.apply(ctx, u, change{
			storeID: storeID,
			sku:     ret.SKU,
			delta:   ret.QuantityReturned,
			kind:    model.MovementReturn,
			refType: "return",
			refID:   strconv.FormatInt(ret.ID, 10),
		})
		if err != nil {
			return err
		}
		result.Inventories = u.touched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *inventoryUseCase) RecordDelivery(ctx context.Context, delivery *model.Delivery, items []model.DeliveryItem) (*inventory.Result, error) {
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: delivery %d sku %s", inventory.ErrInvalidQuantity, delivery.ID, it.SKU)
		}
	}

	storeID, err := uc.repo.DeliveryStoreID(ctx, delivery.ID)
	if errors.Is(err, inventory.ErrDeliveryNotFound) {
		storeID, err = delivery.StoreID, nil
	}
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, lock.Key(storeID, it.SKU))
	}

	result := &inventory.Result{}
	err = uc.execute(ctx, model.MovementDelivery, keys, func(u *unit) error {
		inserted, err := uc.repo.InsertDelivery(ctx, u.tx, delivery)
		if err != nil {
			return fmt.Errorf("failed to insert delivery %d: %w", delivery.ID, err)
		}
		result.Recorded = inserted

		for i := range items {
			item := items[i]
			item.DeliveryID = delivery.ID
			ok, err := uc.repo.InsertDeliveryItem(ctx, u.tx, &item)
			if err != nil {
				return fmt.Errorf("failed to insert delivery item %d/%s: %w", delivery.ID, item.SKU, err)
			}
			if !ok {
				continue
			}
			result.Recorded = true
			if err := uc.apply(ctx, u, deliveryChange(storeID, &item)); err != nil {
				return err
			}
		}
		result.Inventories = u.touched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *inventoryUseCase) RecordDeliveryItem(ctx context.Context, item *model.DeliveryItem) (*inventory.Result, error) {
	if item.Quantity <= 0 {
		return nil, fmt.Errorf("%w: delivery %d sku %s", inventory.ErrInvalidQuantity, item.DeliveryID, item.SKU)
	}
	storeID, err := uc.repo.DeliveryStoreID(ctx, item.DeliveryID)
	if err != nil {
		return nil, err
	}

	result := &inventory.Result{}
	err = uc.execute(ctx, model.MovementDelivery, []string{lock.Key(storeID, item.SKU)}, func(u *unit) error {
		inserted, err := uc.repo.InsertDeliveryItem(ctx, u.tx, item)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		result.Recorded = true
		if err := uc.apply(ctx, u, deliveryChange(storeID, item)); err != nil {
			return err
		}
		result.Inventories = u.touched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func deliveryChange(storeID int64, item *model.DeliveryItem) change {
	return change{
		storeID: storeID,
		sku:     item.SKU,
		delta:   item.Quantity,
		kind:    model.MovementDelivery,
		refType: "delivery",
		refID:   strconv.FormatInt(item.DeliveryID, 10),
		create:  true,
	}
}

func (uc *inventoryUseCase) OnSaleItemRecorded(ctx context.Context, saleID int64, sku string, quantitySold int64) (*model.Inventory, error) {
	if quantitySold <= 0 {
		return nil, fmt.Errorf("%w: sale %d sku %s", inventory.ErrInvalidQuantity, saleID, sku)
	}
	storeID, err := uc.repo.SaleStoreID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return uc.handle(ctx, change{
		storeID: storeID,
		sku:     sku,
		delta:   -quantitySold,
		kind:    model.MovementSale,
		refType: "sale",
		refID:   strconv.FormatInt(saleID, 10),
	})
}

func (uc *inventoryUseCase) OnReturnRecorded(ctx context.Context, saleID int64, sku string, quantityReturned int64) (*model.Inventory, error) {
	if quantityReturned <= 0 {
		return nil, fmt.Errorf("%w: sale %d sku %s", inventory.ErrInvalidQuantity, saleID, sku)
	}
	storeID, err := uc.repo.SaleStoreID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return uc.handle(ctx, change{
		storeID: storeID,
		sku:     sku,
		delta:   quantityReturned,
		kind:    model.MovementReturn,
		refType: "sale",
		refID:   strconv.FormatInt(saleID, 10),
	})
}

func (uc *inventoryUseCase) OnDeliveryItemRecorded(ctx context.Context, deliveryID int64, sku string, quantity int64) (*model.Inventory, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: delivery %d sku %s", inventory.ErrInvalidQuantity, deliveryID, sku)
	}
	storeID, err := uc.repo.DeliveryStoreID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	return uc.handle(ctx, deliveryChange(storeID, &model.DeliveryItem{DeliveryID: deliveryID, SKU: sku, Quantity: quantity}))
}

// handle applies a single change with no fact row attached.
func (uc *inventoryUseCase) handle(ctx context.Context, c change) (*model.Inventory, error) {
	var inv model.Inventory
	err := uc.execute(ctx, c.kind, []string{lock.Key(c.storeID, c.sku)}, func(u *unit) error {
		if err := uc.apply(ctx, u, c); err != nil {
			return err
		}
		inv = u.touched[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (uc *inventoryUseCase) SetReorderThreshold(ctx context.Context, storeID int64, sku string, threshold int64) (*model.Inventory, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: reorder threshold %d", inventory.ErrInvalidQuantity, threshold)
	}

	var inv *model.Inventory
	err := uc.execute(ctx, model.MovementThreshold, []string{lock.Key(storeID, sku)}, func(u *unit) error {
		current, err := uc.repo.GetForUpdate(ctx, u.tx, storeID, sku)
		if err != nil {
			return err
		}
		before := *current
		current.SetThreshold(threshold)

		if err := uc.repo.UpdateLevels(ctx, u.tx, current); err != nil {
			return err
		}
		if err := uc.repo.LogMovement(ctx, u.tx, uc.movement(&before, current, model.MovementThreshold, "", "")); err != nil {
			return err
		}
		uc.track(u, &before, current, model.MovementThreshold)
		inv = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (uc *inventoryUseCase) GetInventory(ctx context.Context, storeID int64, sku string) (*model.Inventory, error) {
	return uc.repo.Get(ctx, storeID, sku)
}

func (uc *inventoryUseCase) ListRestockNeeded(ctx context.Context, storeID *int64, page, pageSize int) ([]model.Inventory, int, error) {
	return uc.repo.FindAll(ctx, &dto.InventoryFilters{
		StoreID:       storeID,
		RestockNeeded: true,
		Page:          page,
		PageSize:      pageSize,
	})
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

// execute runs fn inside one transaction while holding every key. Keys are
// taken before the transaction opens so a waiter never pins a connection.
func (uc *inventoryUseCase) execute(ctx context.Context, kind model.MovementType, keys []string, fn func(u *unit) error) (err error) {
	start := time.Now()
	defer func() { uc.opts.Metrics.Event(string(kind), start, err) }()

	unlock, err := lock.LockAll(ctx, uc.locker, keys)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := uc.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	u := &unit{tx: tx}
	if err := fn(u); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	uc.notify(ctx, u.restock)
	return nil
}

// apply performs the read, compute, write sequence for one row. The caller
// holds the row's key and an open transaction.
func (uc *inventoryUseCase) apply(ctx context.Context, u *unit, c change) error {
	inv, err := uc.repo.GetForUpdate(ctx, u.tx, c.storeID, c.sku)
	if errors.Is(err, inventory.ErrInventoryNotFound) && c.create {
		var created bool
		created, err = uc.create(ctx, u, c)
		if err != nil || created {
			return err
		}
		// Another writer created the row first; apply on top of it.
		inv, err = uc.repo.GetForUpdate(ctx, u.tx, c.storeID, c.sku)
	}
	if err != nil {
		return err
	}

	before := *inv
	inv.Apply(c.delta)
	if inv.QuantityOnHand < 0 && c.delta < 0 && !uc.opts.AllowNegative {
		return fmt.Errorf("%w: store %d sku %s has %d, need %d",
			inventory.ErrInsufficientStock, c.storeID, c.sku, before.QuantityOnHand, -c.delta)
	}

	if err := uc.repo.UpdateLevels(ctx, u.tx, inv); err != nil {
		return err
	}
	if err := uc.repo.LogMovement(ctx, u.tx, uc.movement(&before, inv, c.kind, c.refType, c.refID)); err != nil {
		return err
	}
	uc.track(u, &before, inv, c.kind)
	return nil
}

func (uc *inventoryUseCase) create(ctx context.Context, u *unit, c change) (bool, error) {
	inv := &model.Inventory{
		StoreID:          c.storeID,
		SKU:              c.sku,
		QuantityOnHand:   c.delta,
		ReorderThreshold: uc.opts.DefaultReorderThreshold,
	}
	inv.Refresh()

	created, err := uc.repo.Insert(ctx, u.tx, inv)
	if err != nil || !created {
		return false, err
	}

	before := &model.Inventory{StoreID: c.storeID, SKU: c.sku}
	if err := uc.repo.LogMovement(ctx, u.tx, uc.movement(before, inv, c.kind, c.refType, c.refID)); err != nil {
		return false, err
	}
	u.touched = append(u.touched, *inv)
	// A row that starts below its threshold never passes through InStock.
	if inv.NeedsRestock() {
		uc.flagRestock(u, inv, c.kind)
	}

	uc.logger.Debug("inventory created by first delivery",
		zap.Int64("store_id", inv.StoreID),
		zap.String("sku", inv.SKU),
		zap.Int64("quantity_on_hand", inv.QuantityOnHand),
		zap.String("restock_status", string(inv.RestockStatus)),
	)
	return true, nil
}

func (uc *inventoryUseCase) movement(before, after *model.Inventory, kind model.MovementType, refType, refID string) *model.InventoryMovement {
	m := &model.InventoryMovement{
		ID:             uuid.New().String(),
		StoreID:        after.StoreID,
		SKU:            after.SKU,
		MovementType:   kind,
		QuantityChange: after.QuantityOnHand - before.QuantityOnHand,
		QuantityBefore: before.QuantityOnHand,
		QuantityAfter:  after.QuantityOnHand,
		CreatedAt:      uc.now(),
	}
	if refType != "" {
		m.ReferenceType = &refType
	}
	if refID != "" {
		m.ReferenceID = &refID
	}
	return m
}

func (uc *inventoryUseCase) track(u *unit, before, after *model.Inventory, kind model.MovementType) {
	u.touched = append(u.touched, *after)
	if before.RestockStatus == model.StatusInStock && after.NeedsRestock() {
		uc.flagRestock(u, after, kind)
	}
}

func (uc *inventoryUseCase) flagRestock(u *unit, inv *model.Inventory, kind model.MovementType) {
	u.restock = append(u.restock, inventory.RestockEvent{
		EventID:          uuid.New().String(),
		StoreID:          inv.StoreID,
		SKU:              inv.SKU,
		QuantityOnHand:   inv.QuantityOnHand,
		ReorderThreshold: inv.ReorderThreshold,
		Cause:            kind,
		OccurredAt:       uc.now(),
	})
}

func (uc *inventoryUseCase) notify(ctx context.Context, events []inventory.RestockEvent) {
	for _, ev := range events {
		uc.logger.Info("inventory needs restock",
			zap.Int64("store_id", ev.StoreID),
			zap.String("sku", ev.SKU),
			zap.Int64("quantity_on_hand", ev.QuantityOnHand),
			zap.Int64("reorder_threshold", ev.ReorderThreshold),
		)
		if uc.opts.Notifier == nil {
			continue
		}
		if err := uc.opts.Notifier.NotifyRestockNeeded(ctx, ev); err != nil {
			uc.logger.Warn("failed to publish restock event",
				zap.Int64("store_id", ev.StoreID),
				zap.String("sku", ev.SKU),
				zap.Error(err),
			)
		}
	}
}
