package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/buildml/internal/record"
)

// ImportResult is the JSON payload of the import command.
type ImportResult struct {
	File  string       `json:"file"`
	Stats record.Stats `json:"stats"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <record-file>",
		Short: "Import a build record into the database",
		Long: `Import a build record (YAML, or CUE with a .cue extension) into the database.

The database is created if it does not exist. The import runs as a single
batch: if any entry is rejected nothing from the record is kept.

Examples:
  bml import build.yaml
  bml import --db out/build.bml trace.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runImport(opts *RootOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	rec, err := record.Load(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load record", err)
	}
	formatter.VerboseLog("Loaded %s: %d action(s)", file, len(rec.Actions))

	st, err := opts.openStore(true)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	res, err := record.Import(ctx, st, rec, opts.logger())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to import record", err)
	}
	if err := st.Save(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to save database", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ImportResult{File: file, Stats: res.Stats})
	}
	return formatter.Success(fmt.Sprintf(
		"✓ Imported %s: %d action(s), %d path(s), %d access(es), %d temporary",
		file, res.Stats.Actions, res.Stats.Paths, res.Stats.Accesses, res.Stats.Temporary,
	))
}
