package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/buildml/internal/store"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create an empty build database",
		Long: `Create an empty build database at the configured path.

The database gets a new build id and its root action. Creating over an
existing database is refused.

Example:
  bml create --db out/build.bml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(rootOpts, cmd)
		},
	}
}

func runCreate(opts *RootOptions, cmd *cobra.Command) error {
	if fileExists(opts.Database) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database already exists: %s", opts.Database))
	}

	st, err := opts.openStore(true)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if _, err := st.RootAction(ctx, "build"); err != nil {
		return WrapExitError(ExitCommandError, "failed to create root action", err)
	}
	info, err := st.Info(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read database", err)
	}

	formatter := opts.formatter(cmd)
	if formatter.Format == "json" {
		return formatter.Success(info)
	}
	return formatter.Success(fmt.Sprintf("✓ Created %s (build %s)", info.Path, info.BuildID))
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "info",
		Short:         "Show build id and entity counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				info, err := st.Info(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read database", err)
				}
				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(info)
				}
				return formatter.Success(formatInfo(info))
			})
		},
	}
}

func formatInfo(info store.Info) string {
	return fmt.Sprintf(`database:    %s
build id:    %s
created at:  %s
files:       %d
directories: %d
actions:     %d
accesses:    %d
roots:       %d
trashed:     %d`,
		info.Path, info.BuildID, info.CreatedAt,
		info.Files, info.Dirs, info.Actions, info.Accesses, info.Roots, info.Trashed)
}

// NewSaveAsCommand creates the save-as command.
func NewSaveAsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save-as <target>",
		Short: "Write a compacted copy of the database",
		Long: `Write a compacted copy of the database to a new file.

The target must not exist. The source database is left unchanged.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if err := st.SaveAs(ctx, target); err != nil {
					return WrapExitError(ExitCommandError, "failed to save database", err)
				}
				rootOpts.logger().Info("database saved", "target", target)
				formatter := rootOpts.formatter(cmd)
				if formatter.Format == "json" {
					return formatter.Success(map[string]string{"target": target})
				}
				return formatter.Success(fmt.Sprintf("✓ Saved %s", target))
			})
		},
	}
}
