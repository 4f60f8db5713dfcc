package loader

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/metrics"
	"github.com/fekuna/omnipos-retail-loader/internal/report"
	"github.com/fekuna/omnipos-retail-loader/internal/source"
	"github.com/fekuna/omnipos-retail-loader/pkg/database"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Parallel runs the entities of one dependency stage concurrently.
	Parallel bool
}

type Loader struct {
	repo    Repository
	uc      inventory.UseCase
	opts    Options
	metrics *metrics.Recorder
	logger  logger.ZapLogger
}

func NewLoader(repo Repository, uc inventory.UseCase, opts Options, m *metrics.Recorder, log logger.ZapLogger) *Loader {
	return &Loader{
		repo:    repo,
		uc:      uc,
		opts:    opts,
		metrics: m,
		logger:  log,
	}
}

// LoadAll writes every entity found in src, parents before children. Row
// failures land in the report; only a dead connection or a cancelled
// context stops the run, in which case the partial report is returned with
// the error.
func (l *Loader) LoadAll(ctx context.Context, src *source.Sources) (*report.LoadReport, error) {
	rep := report.New()
	defer rep.Finish()

	l.logger.Info("load started",
		zap.String("run_id", rep.RunID.String()),
		zap.Int("sales", src.Sales.Len()),
		zap.Int("expenses", src.Expenses.Len()),
		zap.Int("deliveries", src.Deliveries.Len()),
		zap.Int("shifts", src.Shifts.Len()),
	)

	for _, st := range l.stages() {
		if err := l.runStage(ctx, src, rep, st.steps); err != nil {
			return rep, err
		}
		if st.after != nil {
			if err := st.after(ctx, rep); err != nil {
				if database.IsConnectionFatal(err) {
					return rep, err
				}
				l.logger.Error("post-stage pass failed", zap.Error(err))
			}
		}
		l.syncSequences(ctx, st.steps)
	}

	l.logger.Info("load finished",
		zap.String("run_id", rep.RunID.String()),
		zap.Int("inserted", rep.TotalInserted()),
		zap.Int("failed", rep.TotalFailed()),
		zap.Int64("stores_with_manager", rep.ManagersAssigned),
	)
	return rep, nil
}

func (l *Loader) runStage(ctx context.Context, src *source.Sources, rep *report.LoadReport, steps []step) error {
	// Registered up front so the report lists entities in catalogue order
	// even when they run concurrently.
	reports := make([]*report.EntityReport, len(steps))
	for i, s := range steps {
		reports[i] = rep.Entity(s.Name())
	}

	if !l.opts.Parallel {
		for i, s := range steps {
			if err := l.runStep(ctx, src, reports[i], s); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range steps {
		i, s := i, s
		g.Go(func() error {
			return l.runStep(gctx, src, reports[i], s)
		})
	}
	return g.Wait()
}

func (l *Loader) runStep(ctx context.Context, src *source.Sources, er *report.EntityReport, s step) error {
	if err := s.run(ctx, src, er, l.metrics, l.logger); err != nil {
		return fmt.Errorf("load %s: %w", s.Name(), err)
	}
	l.logger.Info("entity loaded",
		zap.String("entity", s.Name()),
		zap.Int("inserted", er.Inserted),
		zap.Int("existing", er.Existing),
		zap.Int("duplicates", er.Duplicates),
		zap.Int("failed", er.Failed()),
	)
	return nil
}

// syncSequences moves serial counters past ids loaded explicitly, so rows
// created later without an id (a first delivery's inventory row) get a free
// one.
func (l *Loader) syncSequences(ctx context.Context, steps []step) {
	for _, s := range steps {
		table, column := s.Serial()
		if table == "" {
			continue
		}
		if err := l.repo.SyncSequence(ctx, table, column); err != nil {
			l.logger.Warn("failed to sync sequence", zap.String("table", table), zap.Error(err))
		}
	}
}
