package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurajgor/hyprnote/internal/model"
)

// NewExportCommand creates the export command: rebuild the entire on-disk
// tree from the store.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Rewrite the full on-disk collection",
		Long: `Load the collection, apply startup migrations and write every document
back out. The disk tree is a derived cache of the store, so a full save
repairs missing or stale files.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := context.WithCancel(parent)

			a, err := buildApp(ctx, rootOpts)
			if err != nil {
				cancel()
				return err
			}
			if err := a.Start(ctx); err != nil {
				cancel()
				return WrapExitError(ExitCommandError, "startup failed", err)
			}

			cancel()
			if err := a.Stop(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d sessions\n",
				len(a.Store.RowIDs(model.TableSessions)))
			return nil
		},
	}
}
