package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/buildml/internal/store"
)

// NewTrashCommand creates the trash command group.
func NewTrashCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Move a path or action to the trash",
		Long: `Move a path or action to the trash.

Trashed entries are hidden from lookups and reports but keep their ids and
names until 'bml purge'. A path cannot be trashed while anything refers to
it. An action cannot be trashed while it has live children or access
records; 'bml trash access' deletes a single record outright.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "path <spec|id>",
		Short:         "Trash a path",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				id, err := resolvePath(ctx, st, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve path", err)
				}
				if err := st.TrashPath(ctx, id); err != nil {
					return WrapExitError(ExitCommandError, "failed to trash path", err)
				}
				return rootOpts.formatter(cmd).Success(changed("trashed", "path", int64(id)))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "action <id>",
		Short:         "Trash a leaf action that has no access records",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid action", err)
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if err := st.TrashAction(ctx, id); err != nil {
					return WrapExitError(ExitCommandError, "failed to trash action", err)
				}
				return rootOpts.formatter(cmd).Success(changed("trashed", "action", int64(id)))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "access <action-id> <path>",
		Short:         "Delete one access record",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := parseActionID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid action", err)
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				path, err := resolvePath(ctx, st, args[1])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve path", err)
				}
				if err := st.RemoveAccess(ctx, action, path); err != nil {
					return WrapExitError(ExitCommandError, "failed to remove access", err)
				}
				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(map[string]int64{"action": int64(action), "path_id": int64(path)})
				}
				return formatter.Success(fmt.Sprintf("✓ access of action %d to path %d removed", action, path))
			})
		},
	})

	return cmd
}

// NewReviveCommand creates the revive command group.
func NewReviveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revive",
		Short: "Restore a trashed path or action",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "path <id>",
		Short:         "Revive a trashed path",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				id, err := resolvePath(ctx, st, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to resolve path", err)
				}
				if err := st.RevivePath(ctx, id); err != nil {
					return WrapExitError(ExitCommandError, "failed to revive path", err)
				}
				return rootOpts.formatter(cmd).Success(changed("revived", "path", int64(id)))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "action <id>",
		Short:         "Revive a trashed action",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid action", err)
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if err := st.ReviveAction(ctx, id); err != nil {
					return WrapExitError(ExitCommandError, "failed to revive action", err)
				}
				return rootOpts.formatter(cmd).Success(changed("revived", "action", int64(id)))
			})
		},
	})

	return cmd
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "purge",
		Short:         "Permanently delete everything in the trash",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				res, err := st.PurgeTrash(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to purge trash", err)
				}
				rootOpts.logger().Info("trash purged", "actions", res.Actions, "paths", res.Paths)

				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(res)
				}
				return formatter.Success(fmt.Sprintf("✓ Purged %d action(s), %d path(s)", res.Actions, res.Paths))
			})
		},
	}
}

// ChangeResult is the JSON payload of commands that change one entity.
type ChangeResult struct {
	Change string `json:"change"`
	Kind   string `json:"kind"`
	ID     int64  `json:"id"`
}

func (r ChangeResult) String() string {
	return fmt.Sprintf("✓ %s %s %d", r.Kind, r.Change, r.ID)
}

func changed(change, kind string, id int64) ChangeResult {
	return ChangeResult{Change: change, Kind: kind, ID: id}
}
