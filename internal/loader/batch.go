package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/metrics"
	"github.com/fekuna/omnipos-retail-loader/internal/report"
	"github.com/fekuna/omnipos-retail-loader/internal/source"
	"github.com/fekuna/omnipos-retail-loader/pkg/database"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"go.uber.org/zap"
)

// step is one entity's batch, whatever its row type.
type step interface {
	Name() string
	Serial() (table, column string)
	run(ctx context.Context, src *source.Sources, rep *report.EntityReport, m *metrics.Recorder, log logger.ZapLogger) error
}

// entity is the generic per-entity batch: project, coerce, dedup, write.
type entity[T any] struct {
	name  string
	table func(*source.Sources) *source.Table
	// present columns must all be non-blank or the record is skipped
	// silently; it simply does not carry this entity.
	present []string
	when    func(source.Record) bool
	coerce  func(*fieldReader) T
	key     func(T) string
	write   func(context.Context, T) (bool, error)
	// serial names the generated id column loaded with explicit values.
	serialTable, serialColumn string
}

func (e *entity[T]) Name() string { return e.name }

func (e *entity[T]) Serial() (string, string) { return e.serialTable, e.serialColumn }

func (e *entity[T]) run(ctx context.Context, src *source.Sources, rep *report.EntityReport, m *metrics.Recorder, log logger.ZapLogger) error {
	t := e.table(src)
	if t == nil {
		return nil
	}

	seen := make(map[string]struct{})
	for _, rec := range t.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rec.Has(e.present...) || (e.when != nil && !e.when(rec)) {
			continue
		}

		fr := newFieldReader(rec)
		row := e.coerce(fr)
		if err := fr.Err(); err != nil {
			e.fail(rep, m, log, rec, report.MalformedRow, err)
			continue
		}

		k := e.key(row)
		if _, dup := seen[k]; dup {
			rep.AddDuplicate()
			m.Row(e.name, metrics.ResultDuplicate)
			continue
		}
		seen[k] = struct{}{}

		inserted, err := e.write(ctx, row)
		if err != nil {
			if database.IsConnectionFatal(err) {
				return fmt.Errorf("%s %s: %w", e.name, rec.ID(), err)
			}
			e.fail(rep, m, log, rec, classify(err), err)
			continue
		}
		if inserted {
			rep.AddInserted()
			m.Row(e.name, metrics.ResultInserted)
		} else {
			rep.AddExisting()
			m.Row(e.name, metrics.ResultExisting)
		}
	}
	return nil
}

func (e *entity[T]) fail(rep *report.EntityReport, m *metrics.Recorder, log logger.ZapLogger, rec source.Record, kind report.Kind, err error) {
	rep.Fail(rec.ID(), kind, err)
	m.Row(e.name, metrics.ResultFailed)
	log.Debug("row failed",
		zap.String("entity", e.name),
		zap.String("row", rec.ID()),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
}

func classify(err error) report.Kind {
	switch {
	case errors.Is(err, inventory.ErrInventoryNotFound):
		return report.InventoryNotFound
	case errors.Is(err, inventory.ErrInsufficientStock):
		return report.InsufficientStock
	case errors.Is(err, inventory.ErrSaleNotFound),
		errors.Is(err, inventory.ErrDeliveryNotFound),
		database.IsForeignKeyViolation(err):
		return report.ForeignKeyViolation
	case database.IsUniqueViolation(err):
		return report.DuplicateKey
	case errors.Is(err, ErrMalformedRow),
		errors.Is(err, inventory.ErrInvalidQuantity),
		database.IsConstraintViolation(err):
		return report.MalformedRow
	default:
		return report.StorageError
	}
}
