package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/store"
)

// NewAddCommand creates the add command group.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record paths, actions and accesses one at a time",
	}

	cmd.AddCommand(newAddPathCommand(rootOpts))
	cmd.AddCommand(newAddActionCommand(rootOpts))
	cmd.AddCommand(newAddAccessCommand(rootOpts))

	return cmd
}

func newAddPathCommand(rootOpts *RootOptions) *cobra.Command {
	var dir bool

	cmd := &cobra.Command{
		Use:   "path <spec>",
		Short: "Add a file (or directory with --dir), creating parents",
		Example: `  bml add path /src/cat.c
  bml add path --dir @src/include`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := graph.KindFile
			if dir {
				kind = graph.KindDirectory
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				id, err := st.AddPath(ctx, kind, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to add path", err)
				}
				return rootOpts.emitPath(ctx, cmd, st, id)
			})
		},
	}

	cmd.Flags().BoolVar(&dir, "dir", false, "add a directory instead of a file")

	return cmd
}

func newAddActionCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		parent int64
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "action <command>",
		Short: "Add an action run in a directory",
		Example: `  bml add action "cc -c cat.c" --dir @src
  bml add action "ar r cat.a cat.o" --parent 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if _, err := st.RootAction(ctx, "build"); err != nil {
					return WrapExitError(ExitCommandError, "failed to create root action", err)
				}
				dirID, err := st.LookupPath(ctx, dir)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve directory", err)
				}
				id, err := st.AddAction(ctx, graph.ActionID(parent), dirID, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to add action", err)
				}

				formatter := rootOpts.formatter(cmd)
				entries, err := rootOpts.actionEntries(ctx, st, []graph.ActionID{id})
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read action", err)
				}
				if formatter.Format == "json" {
					return formatter.Success(entries[0])
				}
				return formatter.Success(formatActionEntries(entries))
			})
		},
	}

	cmd.Flags().Int64Var(&parent, "parent", int64(graph.RootAction), "parent action id")
	cmd.Flags().StringVar(&dir, "dir", "/", "working directory")

	return cmd
}

// AccessResult is the JSON payload of the add access command.
type AccessResult struct {
	Action graph.ActionID `json:"action"`
	Path   PathEntry      `json:"path"`
	State  string         `json:"state"`
}

func newAddAccessCommand(rootOpts *RootOptions) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "access <action-id> <path> <read|write|modified|delete>",
		Short: "Record that an action accessed a path",
		Long: `Record that an action accessed a path.

Repeated accesses by the same action merge into one state. A write followed
by a delete marks a temporary file, which is removed when nothing else
refers to it.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := parseActionID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid action", err)
			}
			op, err := graph.ParseOpType(args[2])
			if err != nil || !op.IsRaw() {
				return WrapExitError(ExitCommandError, "invalid operation",
					graph.Errorf(graph.CodeBadValue, "add access", "%q is not read, write, modified or delete", args[2]))
			}

			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				path, err := resolvePath(ctx, st, args[1])
				if errors.Is(err, graph.ErrBadPath) && create {
					path, err = st.AddFile(ctx, args[1])
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve path", err)
				}
				name, err := st.PathName(ctx, path, rootOpts.showRoots())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve path", err)
				}

				state, err := st.AddAccess(ctx, action, path, op)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to add access", err)
				}

				result := AccessResult{Action: action, Path: PathEntry{ID: path, Name: name}, State: state.String()}
				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(result)
				}
				return formatter.Success(fmt.Sprintf("action %d %s %s", action, result.State, name))
			})
		},
	}

	cmd.Flags().BoolVar(&create, "create", true, "create the path as a file if it does not exist")

	return cmd
}

// emitPath prints one path as the result of a command.
func (o *RootOptions) emitPath(ctx context.Context, cmd *cobra.Command, st *store.Store, id graph.PathID) error {
	entries, err := o.pathEntries(ctx, st, []graph.PathID{id})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read path", err)
	}
	formatter := o.formatter(cmd)
	if formatter.Format == "json" {
		return formatter.Success(entries[0])
	}
	return formatter.Success(formatPathEntries(entries))
}
