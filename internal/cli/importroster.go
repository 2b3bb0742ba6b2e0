package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/huddlebot/huddle/internal/roster"
	"github.com/huddlebot/huddle/internal/store"
)

// ImportRosterOptions holds flags for the import-roster command.
type ImportRosterOptions struct {
	*RootOptions
	Database string
}

// NewImportRosterCommand creates the import-roster command.
func NewImportRosterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportRosterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import-roster <csv-file>",
		Short: "Import member profiles from a CSV file",
		Long: `Import member profiles from a CSV export.

The file must have a header row with a member_id column; other
recognized columns (first_name, last_name, email, phone, birthday,
department) are optional. Existing members are updated in place.

Example:
  huddle import-roster --db ./huddle.db ./members.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportRoster(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImportRoster(opts *ImportRosterOptions, csvPath string, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	f, err := os.Open(csvPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open CSV file", err)
	}
	defer f.Close()

	n, err := roster.NewImporter(st).ImportCSV(cmd.Context(), f)
	if err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d members.\n", n)
	return nil
}
