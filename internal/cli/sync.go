package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command: one reconciliation pass.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sync",
		Short:         "Run a single reconciliation pass",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := context.WithCancel(parent)
			defer cancel()

			a, err := buildApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return WrapExitError(ExitCommandError, "startup failed", err)
			}

			mapping, err := a.RunSyncPass(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d events\n", len(mapping))

			cancel()
			return a.Stop()
		},
	}
}
