package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/store"
)

// Stats counts what an import recorded.
type Stats struct {
	Roots     int `json:"roots"`
	Paths     int `json:"paths"`
	Actions   int `json:"actions"`
	Accesses  int `json:"accesses"`
	Temporary int `json:"temporary"`
}

// Result maps record positions to the ids the store assigned.
type Result struct {
	Root    graph.ActionID
	Actions []graph.ActionID
	Stats   Stats
}

// Import replays rec into st in fast-access mode. Accesses are applied in
// document order, so the merged state of every (action, path) pair matches
// the order the tracer saw. If any step fails the whole import is discarded.
//
// Access targets that do not exist yet are created as files.
func Import(ctx context.Context, st *store.Store, rec *Record, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	res := &Result{}
	err := st.WithFastAccess(ctx, func() error {
		return replay(ctx, st, rec, logger, res)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("import complete",
		"actions", res.Stats.Actions,
		"paths", res.Stats.Paths,
		"accesses", res.Stats.Accesses,
		"temporary", res.Stats.Temporary,
	)
	return res, nil
}

func replay(ctx context.Context, st *store.Store, rec *Record, logger *slog.Logger, res *Result) error {
	label := rec.Build
	if label == "" {
		label = "build"
	}
	root, err := st.RootAction(ctx, label)
	if err != nil {
		return err
	}
	res.Root = root

	for i, r := range rec.Roots {
		dir, err := st.AddDirectory(ctx, r.Path)
		if err != nil {
			return fmt.Errorf("root %q: %w", r.Name, err)
		}
		if err := st.AddRoot(ctx, r.Name, dir); err != nil {
			// Re-importing into the same store finds its roots already bound.
			if existing, lookupErr := st.RootPath(ctx, r.Name); lookupErr != nil || existing != dir {
				return fmt.Errorf("root %d (%q): %w", i, r.Name, err)
			}
		}
		res.Stats.Roots++
	}

	for _, spec := range rec.Directories {
		if _, err := st.AddDirectory(ctx, spec); err != nil {
			return fmt.Errorf("directory %q: %w", spec, err)
		}
		res.Stats.Paths++
	}
	for _, spec := range rec.Files {
		if _, err := st.AddFile(ctx, spec); err != nil {
			return fmt.Errorf("file %q: %w", spec, err)
		}
		res.Stats.Paths++
	}

	res.Actions = make([]graph.ActionID, 0, len(rec.Actions))
	for i, a := range rec.Actions {
		id, err := addAction(ctx, st, root, res.Actions, a)
		if err != nil {
			return fmt.Errorf("action %d (%q): %w", i, a.Command, err)
		}
		res.Actions = append(res.Actions, id)
		res.Stats.Actions++

		logger.Debug("action recorded", "index", i, "id", id, "command", a.Command)

		for j, acc := range a.Accesses {
			state, err := addAccess(ctx, st, id, acc)
			if err != nil {
				return fmt.Errorf("action %d access %d (%s %s): %w", i, j, acc.Op, acc.Path, err)
			}
			res.Stats.Accesses++
			if state == graph.OpTemporary {
				res.Stats.Temporary++
				logger.Debug("temporary file dropped", "action", id, "path", acc.Path)
			}
		}
	}
	return nil
}

func addAction(ctx context.Context, st *store.Store, root graph.ActionID, earlier []graph.ActionID, a Action) (graph.ActionID, error) {
	parent := root
	if a.Parent != nil {
		if *a.Parent < 0 || *a.Parent >= len(earlier) {
			return graph.InvalidAction, graph.Errorf(graph.CodeBadValue, "import", "parent %d does not name an earlier action", *a.Parent)
		}
		parent = earlier[*a.Parent]
	}

	dirSpec := a.Directory
	if dirSpec == "" {
		dirSpec = "/"
	}
	dir, err := st.AddDirectory(ctx, dirSpec)
	if err != nil {
		return graph.InvalidAction, err
	}
	return st.AddAction(ctx, parent, dir, a.Command)
}

func addAccess(ctx context.Context, st *store.Store, action graph.ActionID, acc Access) (graph.OpType, error) {
	op, err := graph.ParseOpType(acc.Op)
	if err != nil {
		return graph.OpUnspecified, err
	}
	if !op.IsRaw() {
		return graph.OpUnspecified, graph.Errorf(graph.CodeBadValue, "import", "access needs an operation, got %q", acc.Op)
	}

	path, err := st.LookupPath(ctx, acc.Path)
	if errors.Is(err, graph.ErrBadPath) {
		path, err = st.AddFile(ctx, acc.Path)
	}
	if err != nil {
		return graph.OpUnspecified, err
	}
	return st.AddAccess(ctx, action, path, op)
}
