package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/store"
)

// PathAccess is an action's access to the path being shown.
type PathAccess struct {
	Action  graph.ActionID `json:"action"`
	Command string         `json:"command"`
	State   string         `json:"state"`
}

// ActionAccess is a path accessed by the action being shown.
type ActionAccess struct {
	Path  graph.PathID `json:"path_id"`
	Name  string       `json:"name"`
	State string       `json:"state"`
}

// PathDetail is the output of show path.
type PathDetail struct {
	ID       graph.PathID  `json:"id"`
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Parent   graph.PathID  `json:"parent"`
	Trashed  bool          `json:"trashed"`
	Root     string        `json:"root,omitempty"`
	Children []PathEntry   `json:"children,omitempty"`
	Actions  []ActionEntry `json:"actions_in_dir,omitempty"`
	Accesses []PathAccess  `json:"accessed_by"`
}

// ActionDetail is the output of show action.
type ActionDetail struct {
	ID        graph.ActionID `json:"id"`
	Command   string         `json:"command"`
	Parent    graph.ActionID `json:"parent"`
	Directory string         `json:"directory"`
	Trashed   bool           `json:"trashed"`
	Children  []ActionEntry  `json:"children,omitempty"`
	Accesses  []ActionAccess `json:"accesses"`
}

// NewShowCommand creates the show command group.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one path or action with its relationships",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "path <spec|id>",
		Short:         "Show a path, its children and the actions that accessed it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				id, err := resolvePath(ctx, st, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve path", err)
				}
				detail, err := rootOpts.pathDetail(ctx, st, id)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read path", err)
				}
				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(detail)
				}
				return formatter.Success(formatPathDetail(detail))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "action <id>",
		Short:         "Show an action, its children and the paths it accessed",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid action", err)
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				detail, err := rootOpts.actionDetail(ctx, st, id)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read action", err)
				}
				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(detail)
				}
				return formatter.Success(formatActionDetail(detail))
			})
		},
	})

	return cmd
}

func (o *RootOptions) pathDetail(ctx context.Context, st *store.Store, id graph.PathID) (PathDetail, error) {
	d := PathDetail{ID: id}

	var err error
	if d.Name, err = st.PathName(ctx, id, o.showRoots()); err != nil {
		return d, err
	}
	kind, err := st.PathKind(ctx, id)
	if err != nil {
		return d, err
	}
	d.Kind = kind.String()
	if d.Parent, err = st.PathParent(ctx, id); err != nil {
		return d, err
	}
	if d.Trashed, err = st.IsPathTrashed(ctx, id); err != nil {
		return d, err
	}
	if d.Root, err = st.RootAtPath(ctx, id); err != nil && graph.CodeOf(err) != graph.CodeNotFound {
		return d, err
	}

	if kind == graph.KindDirectory {
		children, err := st.ChildPaths(ctx, id)
		if err != nil {
			return d, err
		}
		if d.Children, err = o.pathEntries(ctx, st, children); err != nil {
			return d, err
		}
		actions, err := st.ActionsInDirectory(ctx, id)
		if err != nil {
			return d, err
		}
		if d.Actions, err = o.actionEntries(ctx, st, actions); err != nil {
			return d, err
		}
	}

	actions, err := st.ActionsThatAccess(ctx, id, graph.OpUnspecified)
	if err != nil {
		return d, err
	}
	d.Accesses = make([]PathAccess, 0, len(actions))
	for _, a := range actions {
		state, err := st.AccessState(ctx, a, id)
		if err != nil {
			return d, err
		}
		summary, err := st.CommandSummary(ctx, a, o.summaryWidth())
		if err != nil {
			return d, err
		}
		d.Accesses = append(d.Accesses, PathAccess{Action: a, Command: summary, State: state.String()})
	}
	return d, nil
}

func (o *RootOptions) actionDetail(ctx context.Context, st *store.Store, id graph.ActionID) (ActionDetail, error) {
	d := ActionDetail{ID: id}

	var err error
	if d.Command, err = st.Command(ctx, id); err != nil {
		return d, err
	}
	if d.Parent, err = st.ActionParent(ctx, id); err != nil {
		return d, err
	}
	dir, err := st.ActionDirectory(ctx, id)
	if err != nil {
		return d, err
	}
	if d.Directory, err = st.PathName(ctx, dir, o.showRoots()); err != nil {
		return d, err
	}
	if d.Trashed, err = st.IsActionTrashed(ctx, id); err != nil {
		return d, err
	}

	children, err := st.ChildActions(ctx, id)
	if err != nil {
		return d, err
	}
	if d.Children, err = o.actionEntries(ctx, st, children); err != nil {
		return d, err
	}

	paths, err := st.FilesAccessed(ctx, id, graph.OpUnspecified)
	if err != nil {
		return d, err
	}
	d.Accesses = make([]ActionAccess, 0, len(paths))
	for _, p := range paths {
		state, err := st.AccessState(ctx, id, p)
		if err != nil {
			return d, err
		}
		name, err := st.PathName(ctx, p, o.showRoots())
		if err != nil {
			return d, err
		}
		d.Accesses = append(d.Accesses, ActionAccess{Path: p, Name: name, State: state.String()})
	}
	return d, nil
}

func formatPathDetail(d PathDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "path %d: %s\n", d.ID, d.Name)
	fmt.Fprintf(&b, "  kind:    %s\n", d.Kind)
	fmt.Fprintf(&b, "  parent:  %d\n", d.Parent)
	if d.Root != "" {
		fmt.Fprintf(&b, "  root:    @%s\n", d.Root)
	}
	if d.Trashed {
		b.WriteString("  trashed: yes\n")
	}
	if len(d.Children) > 0 {
		b.WriteString("  children:\n")
		for _, c := range d.Children {
			fmt.Fprintf(&b, "    %6d  %s\n", c.ID, c.Name)
		}
	}
	if len(d.Actions) > 0 {
		b.WriteString("  actions run here:\n")
		for _, a := range d.Actions {
			fmt.Fprintf(&b, "    %6d  %s\n", a.ID, a.Command)
		}
	}
	b.WriteString("  accessed by:")
	if len(d.Accesses) == 0 {
		b.WriteString(" (none)")
	}
	for _, a := range d.Accesses {
		fmt.Fprintf(&b, "\n    %6d  %-8s %s", a.Action, a.State, a.Command)
	}
	return b.String()
}

func formatActionDetail(d ActionDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "action %d: %s\n", d.ID, d.Command)
	fmt.Fprintf(&b, "  parent:    %d\n", d.Parent)
	fmt.Fprintf(&b, "  directory: %s\n", d.Directory)
	if d.Trashed {
		b.WriteString("  trashed:   yes\n")
	}
	if len(d.Children) > 0 {
		b.WriteString("  children:\n")
		for _, c := range d.Children {
			fmt.Fprintf(&b, "    %6d  %s\n", c.ID, c.Command)
		}
	}
	b.WriteString("  accesses:")
	if len(d.Accesses) == 0 {
		b.WriteString(" (none)")
	}
	for _, a := range d.Accesses {
		fmt.Fprintf(&b, "\n    %-8s %s", a.State, a.Name)
	}
	return b.String()
}
