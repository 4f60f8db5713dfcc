package cli

import (
	"fmt"

	"github.com/fekuna/omnipos-retail-loader/internal/schema"
	"github.com/spf13/cobra"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to start", err)
			}
			defer a.Close()

			if err := schema.Migrate(cmd.Context(), a.db); err != nil {
				return WrapExitError(ExitCommandError, "failed to migrate", err)
			}
			a.logger.Info("Schema migrated")

			if rootOpts.Format == "json" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), `{"status":"ok"}`)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return err
		},
	}
}
