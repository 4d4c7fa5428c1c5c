package cli

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hurajgor/hyprnote/internal/schema"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate the on-disk collection",
		Long: `Check every document in the data directory: session metadata against the
schema, and the events and values files for well-formed JSON. Problems
are reported but nothing is modified; run export to rebuild the tree
from the store.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return checkCollection(cmd, cfg.DataDir)
		},
	}
}

func checkCollection(cmd *cobra.Command, dataDir string) error {
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist yet; nothing to check\n", dataDir)
		return nil
	}

	var checked, bad int
	report := func(path string, err error) {
		bad++
		fmt.Fprintf(cmd.OutOrStdout(), "BAD  %s: %v\n", path, err)
	}

	for _, name := range []string{"events.json", "values.json"} {
		path := filepath.Join(dataDir, name)
		b, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		checked++
		if err != nil {
			report(path, err)
			continue
		}
		if !json.Valid(b) {
			report(path, fmt.Errorf("not valid JSON"))
		}
	}

	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "_meta.json" {
			return nil
		}
		checked++
		b, err := os.ReadFile(path)
		if err != nil {
			report(path, err)
			return nil
		}
		if err := schema.ValidateSessionMeta(b); err != nil {
			report(path, err)
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "walking data directory", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checked %d documents, %d problems\n", checked, bad)
	if bad > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid documents", bad))
	}
	return nil
}
