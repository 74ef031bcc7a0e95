package report

import (
	"context"
	"fmt"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/store"
)

// Graph is the part of the store the report engine reads.
// Implemented by *store.Store.
type Graph interface {
	ActionsAccessingAny(ctx context.Context, paths []graph.PathID, filters ...graph.OpType) ([]graph.ActionID, error)
	FilesAccessedByAny(ctx context.Context, actions []graph.ActionID, filters ...graph.OpType) ([]graph.PathID, error)
	AccessCounts(ctx context.Context) ([]store.AccessCount, error)
	AllFiles(ctx context.Context) ([]graph.PathID, error)
	PathsWithOps(ctx context.Context, filters ...graph.OpType) ([]graph.PathID, error)
	FindPaths(ctx context.Context, pattern string) ([]graph.PathID, error)
	FindActions(ctx context.Context, substr string) ([]graph.ActionID, error)
}

var _ Graph = (*store.Store)(nil)

// An action consumes a file it read or modified, and produces one it wrote
// or modified. OpWrite also covers the hidden wrote-then-read state.
var (
	consumeOps = []graph.OpType{graph.OpRead, graph.OpModified}
	produceOps = []graph.OpType{graph.OpWrite, graph.OpModified}
)

// Engine answers provenance queries.
type Engine struct {
	g Graph
}

// New creates an Engine reading from g.
func New(g Graph) *Engine {
	return &Engine{g: g}
}

// DerivedFiles returns the files produced from sources: everything written
// by an action that read one of sources. With transitive set, the search is
// repeated on each newly found file until nothing new turns up. Members of
// sources are never part of the result.
func (e *Engine) DerivedFiles(ctx context.Context, sources []graph.PathID, transitive bool) ([]graph.PathID, error) {
	return e.walk(ctx, sources, transitive, consumeOps, produceOps)
}

// InputFiles is the mirror of DerivedFiles: the files read by any action
// that wrote one of products.
func (e *Engine) InputFiles(ctx context.Context, products []graph.PathID, transitive bool) ([]graph.PathID, error) {
	return e.walk(ctx, products, transitive, produceOps, consumeOps)
}

// walk is a breadth-first search over the bipartite action/file graph. from
// selects the actions attached to the frontier, to selects the files those
// actions reach.
func (e *Engine) walk(ctx context.Context, start []graph.PathID, transitive bool, from, to []graph.OpType) ([]graph.PathID, error) {
	visited := graph.NewPathSet(start...)
	seenActions := graph.NewActionSet()
	found := graph.NewPathSet()

	frontier := visited.Sorted()
	for len(frontier) > 0 {
		actions, err := e.g.ActionsAccessingAny(ctx, frontier, from...)
		if err != nil {
			return nil, fmt.Errorf("walk: actions: %w", err)
		}
		var fresh []graph.ActionID
		for _, a := range actions {
			if !seenActions.Has(a) {
				seenActions.Add(a)
				fresh = append(fresh, a)
			}
		}
		if len(fresh) == 0 {
			break
		}

		files, err := e.g.FilesAccessedByAny(ctx, fresh, to...)
		if err != nil {
			return nil, fmt.Errorf("walk: files: %w", err)
		}
		frontier = nil
		for _, f := range files {
			if visited.Has(f) {
				continue
			}
			visited.Add(f)
			found.Add(f)
			frontier = append(frontier, f)
		}

		if !transitive {
			break
		}
	}
	return found.Sorted(), nil
}

// MostCommonlyAccessedFiles ranks files by the number of actions that
// accessed them, highest first. Directories are not counted. limit <= 0
// returns every accessed file.
func (e *Engine) MostCommonlyAccessedFiles(ctx context.Context, limit int) ([]store.AccessCount, error) {
	counts, err := e.g.AccessCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("most accessed: %w", err)
	}
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

// FilesNeverAccessed returns the live files no action touched.
func (e *Engine) FilesNeverAccessed(ctx context.Context) ([]graph.PathID, error) {
	all, err := e.g.AllFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("never accessed: %w", err)
	}
	touched, err := e.g.PathsWithOps(ctx)
	if err != nil {
		return nil, fmt.Errorf("never accessed: %w", err)
	}

	accessed := graph.NewPathSet(touched...)
	result := []graph.PathID{}
	for _, id := range all {
		if !accessed.Has(id) {
			result = append(result, id)
		}
	}
	return result, nil
}

// WriteOnlyFiles returns the terminal artifacts of a build: files some
// action wrote or modified that no other action consumed. A MODIFIED record
// counts as consumption unless the modifying action is the file's only
// producer.
func (e *Engine) WriteOnlyFiles(ctx context.Context) ([]graph.PathID, error) {
	written, err := e.g.PathsWithOps(ctx, produceOps...)
	if err != nil {
		return nil, fmt.Errorf("write only: %w", err)
	}
	read, err := e.g.PathsWithOps(ctx, graph.OpRead)
	if err != nil {
		return nil, fmt.Errorf("write only: %w", err)
	}
	edited, err := e.g.PathsWithOps(ctx, graph.OpModified)
	if err != nil {
		return nil, fmt.Errorf("write only: %w", err)
	}

	consumed := graph.NewPathSet(read...)
	modified := graph.NewPathSet(edited...)
	result := []graph.PathID{}
	for _, id := range written {
		if consumed.Has(id) {
			continue
		}
		if modified.Has(id) {
			producers, err := e.g.ActionsAccessingAny(ctx, []graph.PathID{id}, produceOps...)
			if err != nil {
				return nil, fmt.Errorf("write only: %w", err)
			}
			// One record per pair, so a second producer is another action
			// whose output the modifier read.
			if len(producers) > 1 {
				continue
			}
		}
		result = append(result, id)
	}
	return result, nil
}

// FilesMatchingName returns live paths whose base name matches a glob.
func (e *Engine) FilesMatchingName(ctx context.Context, pattern string) ([]graph.PathID, error) {
	return e.g.FindPaths(ctx, pattern)
}

// ActionsMatchingCommand returns live actions whose command contains substr.
func (e *Engine) ActionsMatchingCommand(ctx context.Context, substr string) ([]graph.ActionID, error) {
	return e.g.FindActions(ctx, substr)
}

// ActionsThatUse returns the actions that accessed any of files in a state
// matching filter (graph.OpUnspecified matches any).
func (e *Engine) ActionsThatUse(ctx context.Context, files []graph.PathID, filter graph.OpType) ([]graph.ActionID, error) {
	return e.g.ActionsAccessingAny(ctx, files, filter)
}
