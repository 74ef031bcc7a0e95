package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/store"
)

// PathEntry is one path in command output.
type PathEntry struct {
	ID   graph.PathID `json:"id"`
	Name string       `json:"name"`
}

// ActionEntry is one action in command output.
type ActionEntry struct {
	ID      graph.ActionID `json:"id"`
	Command string         `json:"command"`
}

// resolvePath accepts a path spec ("/a/b" or "@root/b") or a numeric path
// id. Ids reach trashed paths, which specs cannot.
func resolvePath(ctx context.Context, st *store.Store, arg string) (graph.PathID, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if _, err := st.PathKind(ctx, graph.PathID(id)); err != nil {
			return graph.InvalidPath, err
		}
		return graph.PathID(id), nil
	}
	return st.LookupPath(ctx, arg)
}

func resolvePaths(ctx context.Context, st *store.Store, args []string) ([]graph.PathID, error) {
	ids := make([]graph.PathID, 0, len(args))
	for _, arg := range args {
		id, err := resolvePath(ctx, st, arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseActionID parses a numeric action id argument.
func parseActionID(arg string) (graph.ActionID, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return graph.InvalidAction, graph.Errorf(graph.CodeBadValue, "parse action", "%q is not an action id", arg)
	}
	return graph.ActionID(id), nil
}

func (o *RootOptions) pathEntries(ctx context.Context, st *store.Store, ids []graph.PathID) ([]PathEntry, error) {
	entries := make([]PathEntry, 0, len(ids))
	for _, id := range ids {
		name, err := st.PathName(ctx, id, o.showRoots())
		if err != nil {
			return nil, err
		}
		entries = append(entries, PathEntry{ID: id, Name: name})
	}
	return entries, nil
}

func (o *RootOptions) actionEntries(ctx context.Context, st *store.Store, ids []graph.ActionID) ([]ActionEntry, error) {
	entries := make([]ActionEntry, 0, len(ids))
	for _, id := range ids {
		summary, err := st.CommandSummary(ctx, id, o.summaryWidth())
		if err != nil {
			return nil, err
		}
		entries = append(entries, ActionEntry{ID: id, Command: summary})
	}
	return entries, nil
}

func formatPathEntries(entries []PathEntry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d  %s", e.ID, e.Name)
	}
	return b.String()
}

func formatActionEntries(entries []ActionEntry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d  %s", e.ID, e.Command)
	}
	return b.String()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
