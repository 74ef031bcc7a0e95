package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/store"
)

// RootEntry is one root in command output.
type RootEntry struct {
	Name string       `json:"name"`
	Path graph.PathID `json:"path_id"`
	Dir  string       `json:"dir"`
}

// NewRootsCommand creates the root command group.
func NewRootsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "root",
		Short: "Manage named roots",
		Long: `Manage named roots.

A root binds a name to a directory so paths can be written and shown as
@name/rest. Each directory holds at most one root.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "add <name> <dir>",
		Short:         "Bind a new root to a directory",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				dir, err := st.LookupPath(ctx, args[1])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve directory", err)
				}
				if err := st.AddRoot(ctx, args[0], dir); err != nil {
					return WrapExitError(ExitCommandError, "failed to add root", err)
				}
				return rootOpts.emitRoot(ctx, cmd, st, args[0], dir, "bound")
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "move <name> <dir>",
		Short:         "Rebind an existing root",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				dir, err := st.LookupPath(ctx, args[1])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve directory", err)
				}
				if err := st.MoveRoot(ctx, args[0], dir); err != nil {
					return WrapExitError(ExitCommandError, "failed to move root", err)
				}
				return rootOpts.emitRoot(ctx, cmd, st, args[0], dir, "moved")
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <name>",
		Short:         "Remove a root",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if err := st.DeleteRoot(ctx, args[0]); err != nil {
					return WrapExitError(ExitCommandError, "failed to delete root", err)
				}
				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(map[string]string{"deleted": args[0]})
				}
				return formatter.Success(fmt.Sprintf("✓ root @%s deleted", args[0]))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List roots by name",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				roots, err := st.Roots(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list roots", err)
				}
				entries := make([]RootEntry, 0, len(roots))
				for _, r := range roots {
					dir, err := st.PathName(ctx, r.Path, false)
					if err != nil {
						return WrapExitError(ExitCommandError, "failed to list roots", err)
					}
					entries = append(entries, RootEntry{Name: r.Name, Path: r.Path, Dir: dir})
				}

				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(entries)
				}
				return formatter.Success(formatRootEntries(entries))
			})
		},
	})

	return cmd
}

func (o *RootOptions) emitRoot(ctx context.Context, cmd *cobra.Command, st *store.Store, name string, dir graph.PathID, verb string) error {
	dirName, err := st.PathName(ctx, dir, false)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read root", err)
	}
	formatter := o.formatter(cmd)
	if formatter.Format == "json" {
		return formatter.Success(RootEntry{Name: name, Path: dir, Dir: dirName})
	}
	return formatter.Success(fmt.Sprintf("✓ root @%s %s to %s", name, verb, dirName))
}

func formatRootEntries(entries []RootEntry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("@%-12s %s", e.Name, e.Dir))
	}
	return strings.Join(lines, "\n")
}
