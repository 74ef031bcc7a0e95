package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/report"
	"github.com/roach88/buildml/internal/store"
)

// CountEntry is one line of the most-accessed report.
type CountEntry struct {
	PathEntry
	Count int `json:"count"`
}

// NewReportCommand creates the report command group.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Answer dependency questions about the build",
		Long: `Answer dependency questions about the build.

Paths are given as specs (/a/b or @root/b) or numeric ids. Results list
live files by id.

Examples:
  bml report derived @src/pets.h --transitive
  bml report inputs /out/animals.exe
  bml report most-accessed --limit 10
  bml report write-only --format json`,
	}

	cmd.AddCommand(newWalkReportCommand(rootOpts, "derived", "Files produced from the given files",
		func(e *report.Engine) walkFunc { return e.DerivedFiles }))
	cmd.AddCommand(newWalkReportCommand(rootOpts, "inputs", "Files the given files were produced from",
		func(e *report.Engine) walkFunc { return e.InputFiles }))
	cmd.AddCommand(newMostAccessedCommand(rootOpts))
	cmd.AddCommand(newPathReportCommand(rootOpts, "never-accessed", "Files no action accessed",
		func(ctx context.Context, e *report.Engine) ([]graph.PathID, error) { return e.FilesNeverAccessed(ctx) }))
	cmd.AddCommand(newPathReportCommand(rootOpts, "write-only", "Files written but never read",
		func(ctx context.Context, e *report.Engine) ([]graph.PathID, error) { return e.WriteOnlyFiles(ctx) }))
	cmd.AddCommand(newFindFilesCommand(rootOpts))
	cmd.AddCommand(newFindActionsCommand(rootOpts))
	cmd.AddCommand(newUsersCommand(rootOpts))

	return cmd
}

type walkFunc func(ctx context.Context, start []graph.PathID, transitive bool) ([]graph.PathID, error)

func newWalkReportCommand(rootOpts *RootOptions, name, short string, pick func(*report.Engine) walkFunc) *cobra.Command {
	var transitive bool

	cmd := &cobra.Command{
		Use:           name + " <path>...",
		Short:         short,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				start, err := resolvePaths(ctx, st, args)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve path", err)
				}
				ids, err := pick(report.New(st))(ctx, start, transitive)
				if err != nil {
					return WrapExitError(ExitCommandError, name+" report failed", err)
				}
				return rootOpts.emitPaths(ctx, cmd, st, ids)
			})
		},
	}

	cmd.Flags().BoolVarP(&transitive, "transitive", "t", false, "follow the closure instead of one step")

	return cmd
}

func newPathReportCommand(rootOpts *RootOptions, name, short string, run func(context.Context, *report.Engine) ([]graph.PathID, error)) *cobra.Command {
	return &cobra.Command{
		Use:           name,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				ids, err := run(ctx, report.New(st))
				if err != nil {
					return WrapExitError(ExitCommandError, name+" report failed", err)
				}
				return rootOpts.emitPaths(ctx, cmd, st, ids)
			})
		},
	}
}

func newMostAccessedCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "most-accessed",
		Short:         "Files ranked by how many actions accessed them",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				counts, err := report.New(st).MostCommonlyAccessedFiles(ctx, limit)
				if err != nil {
					return WrapExitError(ExitCommandError, "most-accessed report failed", err)
				}

				entries := make([]CountEntry, 0, len(counts))
				for _, c := range counts {
					name, err := st.PathName(ctx, c.Path, rootOpts.showRoots())
					if err != nil {
						return WrapExitError(ExitCommandError, "failed to read path", err)
					}
					entries = append(entries, CountEntry{PathEntry: PathEntry{ID: c.Path, Name: name}, Count: c.Count})
				}

				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(entries)
				}
				return formatter.Success(formatCountEntries(entries))
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of files to list (0 for all)")

	return cmd
}

func newFindFilesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "find-files <glob>",
		Short:         "Files whose base name matches a glob",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				ids, err := report.New(st).FilesMatchingName(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "find-files failed", err)
				}
				return rootOpts.emitPaths(ctx, cmd, st, ids)
			})
		},
	}
}

func newFindActionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "find-actions <text>",
		Short:         "Actions whose command contains text",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				ids, err := report.New(st).ActionsMatchingCommand(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "find-actions failed", err)
				}
				return rootOpts.emitActions(ctx, cmd, st, ids)
			})
		},
	}
}

func newUsersCommand(rootOpts *RootOptions) *cobra.Command {
	var op string

	cmd := &cobra.Command{
		Use:           "users <path>...",
		Short:         "Actions that accessed any of the given paths",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := graph.ParseOpType(op)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --op", err)
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				paths, err := resolvePaths(ctx, st, args)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve path", err)
				}
				ids, err := report.New(st).ActionsThatUse(ctx, paths, filter)
				if err != nil {
					return WrapExitError(ExitCommandError, "users report failed", err)
				}
				return rootOpts.emitActions(ctx, cmd, st, ids)
			})
		},
	}

	cmd.Flags().StringVar(&op, "op", "any", "only accesses in this state (read|write|modified|delete|any)")

	return cmd
}

func (o *RootOptions) emitPaths(ctx context.Context, cmd *cobra.Command, st *store.Store, ids []graph.PathID) error {
	entries, err := o.pathEntries(ctx, st, ids)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read paths", err)
	}
	formatter := o.formatter(cmd)
	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	return formatter.Success(formatPathEntries(entries))
}

func (o *RootOptions) emitActions(ctx context.Context, cmd *cobra.Command, st *store.Store, ids []graph.ActionID) error {
	entries, err := o.actionEntries(ctx, st, ids)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read actions", err)
	}
	formatter := o.formatter(cmd)
	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	return formatter.Success(formatActionEntries(entries))
}

func formatCountEntries(entries []CountEntry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%6d  %s", e.Count, e.Name))
	}
	return strings.Join(lines, "\n")
}
