package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fekuna/omnipos-retail-loader/internal/loader"
	"github.com/fekuna/omnipos-retail-loader/internal/loader/repository"
	"github.com/fekuna/omnipos-retail-loader/internal/report"
	"github.com/fekuna/omnipos-retail-loader/internal/schema"
	"github.com/fekuna/omnipos-retail-loader/internal/source"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type LoadOptions struct {
	*RootOptions
	Dir      string
	Parallel bool
	Migrate  bool
	Strict   bool
	Failures bool
}

func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the CSV extracts and print the load report",
		Long: `Reads Sales_Master.csv, Expense_Master.csv, Delivery_Master.csv and
Shift_Master.csv (names overridable through LOADER_*_FILE) from the source
directory and loads every entity, parents first. Rows that cannot be written
are listed in the report; the load only aborts when the database connection
is lost.

Example:
  retail-loader load --dir ./data
  retail-loader load --dir ./data --parallel --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "source directory (default LOADER_SOURCE_DIR)")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "load independent entities concurrently (default LOADER_PARALLEL)")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", true, "create the schema before loading")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any row failed")
	cmd.Flags().BoolVar(&opts.Failures, "failures", false, "list every failed row in text output")

	return cmd
}

func runLoad(cmd *cobra.Command, opts *LoadOptions) error {
	a, err := newApp(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	cfg := a.cfg

	dir := opts.Dir
	if dir == "" {
		dir = cfg.Loader.SourceDir
	}
	parallel := cfg.Loader.Parallel
	if cmd.Flags().Changed("parallel") {
		parallel = opts.Parallel
	}

	if opts.Migrate {
		if err := schema.Migrate(ctx, a.db); err != nil {
			return WrapExitError(ExitCommandError, "failed to migrate", err)
		}
	}

	src, err := source.ReadDir(dir, source.Files{
		Sales:      cfg.Loader.SalesFile,
		Expenses:   cfg.Loader.ExpenseFile,
		Deliveries: cfg.Loader.DeliveryFile,
		Shifts:     cfg.Loader.ShiftFile,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read source", err)
	}

	uc, err := a.inventoryUseCase()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start inventory engine", err)
	}

	l := loader.NewLoader(repository.NewSQLRepository(a.db), uc, loader.Options{Parallel: parallel}, a.metrics, a.logger.Named("loader"))
	rep, loadErr := l.LoadAll(ctx, src)

	if err := writeReport(cmd.OutOrStdout(), opts, rep); err != nil {
		return err
	}
	if loadErr != nil {
		a.logger.Error("Load aborted", zap.Error(loadErr))
		return WrapExitError(ExitCommandError, "load aborted", loadErr)
	}
	if opts.Strict && rep.TotalFailed() > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d rows failed", rep.TotalFailed()))
	}
	return nil
}

func writeReport(w io.Writer, opts *LoadOptions, rep *report.LoadReport) error {
	if rep == nil {
		return nil
	}
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return rep.WriteText(w, opts.Failures)
}
