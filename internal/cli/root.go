package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/buildml/internal/config"
	"github.com/roach88/buildml/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	ConfigFile string

	// Config is resolved before any subcommand runs.
	Config *config.Config

	// Logger receives diagnostics on stderr.
	Logger *slog.Logger

	// ConfigDir is searched for bml.cue or bml.yaml. Empty means the working
	// directory. Tests point it at a temp dir.
	ConfigDir string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the bml CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bml",
		Short: "bml - build provenance store",
		Long: `Record which build actions read, wrote, modified and deleted which files,
then ask what a change to a file affects and what a product was built from.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the build database (default from config, build.bml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default bml.cue or bml.yaml in the working directory)")

	// Add subcommands
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewTrashCommand(opts))
	cmd.AddCommand(NewReviveCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewRootsCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewSaveAsCommand(opts))

	return cmd
}

// resolve layers config file, environment and flags, then installs the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, used, err := config.Load(config.LoadOptions{
		File: o.ConfigFile,
		Dir:  o.ConfigDir,
		Flags: map[string]*pflag.Flag{
			"database": flags.Lookup("db"),
			"format":   flags.Lookup("format"),
			"verbose":  flags.Lookup("verbose"),
		},
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	o.Config = cfg
	o.Format = cfg.Format
	o.Verbose = cfg.Verbose
	o.Database = cfg.Database
	o.Logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	if used != "" {
		o.Logger.Debug("config loaded", "file", used)
	}
	return nil
}

// newLogger returns a slog logger backed by charmbracelet/log.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix: "bml",
		Level:  level,
	})
	return slog.New(handler)
}

// logger returns the resolved logger, or a discarding one for commands
// built without the root command.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// summaryWidth returns the configured command summary width.
func (o *RootOptions) summaryWidth() int {
	if o.Config != nil {
		return o.Config.SummaryWidth
	}
	return config.Default().SummaryWidth
}

// showRoots reports whether paths are displayed relative to their root.
func (o *RootOptions) showRoots() bool {
	if o.Config != nil {
		return o.Config.ShowRoots
	}
	return config.Default().ShowRoots
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured database. It must already exist unless
// create is set.
func (o *RootOptions) openStore(create bool) (*store.Store, error) {
	path := o.Database
	if path == "" {
		path = config.Default().Database
	}
	if !create && !fileExists(path) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s (run 'bml create' first)", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	o.logger().Debug("database opened", "path", path)
	return st, nil
}

// withStore opens the database, runs fn and closes it.
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	st, err := o.openStore(false)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			o.logger().Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st)
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are rendered in the selected output format.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if isReported(err) {
		return GetExitCode(err)
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	w := stderr
	if format == "json" {
		w = stdout
	}
	formatter := &OutputFormatter{Format: format, Writer: w, Verbose: opts.Verbose}
	_ = formatter.Error(ErrorCode(err), ErrorMessage(err), nil)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
