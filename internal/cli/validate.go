package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/record"
	"github.com/roach88/buildml/internal/store"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool          `json:"valid"`
	Stats *record.Stats `json:"stats,omitempty"`
	Error *CLIError     `json:"error,omitempty"`
	Line  int           `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <record-file>",
		Short: "Check a build record without importing it",
		Long: `Check a build record without touching the database.

The record is parsed, checked against its schema and replayed into a
scratch in-memory store, so every error an import would hit is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	rec, err := record.Load(file)
	if err != nil {
		var loadErr *record.LoadError
		if errors.As(err, &loadErr) {
			line := 0
			if loadErr.Pos.IsValid() {
				line = loadErr.Pos.Line()
			}
			return outputValidationFailure(formatter, ErrCodeInvalidRecord, loadErr.Message, line)
		}
		return outputValidateError(formatter, ErrCodeCommand, err.Error())
	}
	formatter.VerboseLog("Parsed %s: %d action(s)", file, len(rec.Actions))

	stats, err := dryRun(cmd.Context(), rec, opts)
	if err != nil {
		code := ErrCodeInvalidRecord
		if c := graph.CodeOf(err); c != "" {
			code = string(c)
		}
		return outputValidationFailure(formatter, code, err.Error(), 0)
	}

	return outputValidateSuccess(formatter, stats)
}

// ErrCodeInvalidRecord marks a record that failed schema or replay checks.
const ErrCodeInvalidRecord = "E_INVALID_RECORD"

// dryRun replays rec into a scratch store and reports what it would record.
func dryRun(ctx context.Context, rec *record.Record, opts *RootOptions) (record.Stats, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return record.Stats{}, err
	}
	defer st.Close()

	res, err := record.Import(ctx, st, rec, opts.logger())
	if err != nil {
		return record.Stats{}, err
	}
	return res.Stats, nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, stats record.Stats) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Stats: &stats})
	}

	fmt.Fprintf(formatter.Writer, "✓ Record valid: %d action(s), %d access(es)\n", stats.Actions, stats.Accesses)
	return nil
}

// outputValidateError outputs a command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Unreadable input is a command-level error (exit code 2)
	return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("%s: %s", code, message), Reported: true}
}

// outputValidationFailure outputs an invalid record.
func outputValidationFailure(formatter *OutputFormatter, code, message string, line int) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Line: line},
			Error: &CLIError{
				Code:    code,
				Message: message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewReportedExitError(ExitFailure, "record is invalid")
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	if line > 0 {
		fmt.Fprintf(formatter.Writer, "line %d\n", line)
	}
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, message)

	// Validation failures = exit code 1 (test/validation failure)
	return NewReportedExitError(ExitFailure, "record is invalid")
}
