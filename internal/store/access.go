package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/buildml/internal/graph"
)

// maxInParams bounds the size of one IN (...) list.
const maxInParams = 500

// AddAccess records that action performed op on path and returns the pair's
// new observable state.
//
// The event is folded into any existing record with graph.Merge. When the
// merge yields graph.OpTemporary the record is deleted and, if nothing else
// refers to it, the path is removed from the namespace altogether. That
// outcome is returned as (graph.OpTemporary, nil): it is a success.
//
// Errors:
//   - graph.ErrBadValue: op is not a raw operation, or action is missing or trashed
//   - graph.ErrBadPath: path is missing or trashed
func (s *Store) AddAccess(ctx context.Context, action graph.ActionID, path graph.PathID, op graph.OpType) (graph.OpType, error) {
	const opName = "add access"
	if !op.IsRaw() {
		return graph.OpUnspecified, graph.Errorf(graph.CodeBadValue, opName, "invalid operation %v", op)
	}

	result := graph.OpUnspecified
	err := s.atomically(ctx, opName, func(q querier) error {
		if _, err := liveAction(ctx, q, action, opName); err != nil {
			return err
		}
		if _, err := livePath(ctx, q, path, graph.CodeBadPath, opName); err != nil {
			return err
		}

		current, err := accessState(ctx, q, action, path)
		if err != nil {
			return err
		}
		next, err := graph.Merge(current, op)
		if err != nil {
			return err
		}

		if next == graph.OpTemporary {
			if err := deleteAccess(ctx, q, action, path); err != nil {
				return err
			}
			if err := s.removeTransientPath(ctx, q, path); err != nil {
				return err
			}
			result = graph.OpTemporary
			return nil
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO accesses (action_id, path_id, op) VALUES (?, ?, ?)
			ON CONFLICT(action_id, path_id) DO UPDATE SET op = excluded.op
		`, action, path, int(next))
		if err != nil {
			return fmt.Errorf("%s: upsert: %w", opName, err)
		}
		result = next.Observable()
		return nil
	})
	if err != nil {
		return graph.OpUnspecified, err
	}
	return result, nil
}

// removeTransientPath deletes a scratch file's row outright. If the file is
// still referenced (another action touched it, a root or include points at
// it) it stays, and only the access record is gone.
func (s *Store) removeTransientPath(ctx context.Context, q querier, path graph.PathID) error {
	row, ok, err := readPath(ctx, q, path)
	if err != nil || !ok {
		return err
	}
	if row.Kind != graph.KindFile {
		return nil
	}
	if reason, err := pathInUse(ctx, q, path); err != nil || reason != "" {
		return err
	}
	blocked, err := s.includesBlocking(ctx, path)
	if err != nil {
		return fmt.Errorf("remove transient path: check includes: %w", err)
	}
	if blocked {
		return nil
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM paths WHERE id = ?`, path); err != nil {
		return fmt.Errorf("remove transient path: %w", err)
	}
	if err := s.purgeAttributes(ctx, path); err != nil {
		return fmt.Errorf("remove transient path: purge attributes: %w", err)
	}
	return nil
}

// accessState returns the stored state for a pair, or OpUnspecified if there
// is no record.
func accessState(ctx context.Context, q querier, action graph.ActionID, path graph.PathID) (graph.OpType, error) {
	var op int
	err := q.QueryRowContext(ctx, `
		SELECT op FROM accesses WHERE action_id = ? AND path_id = ?
	`, action, path).Scan(&op)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.OpUnspecified, nil
	}
	if err != nil {
		return graph.OpUnspecified, fmt.Errorf("read access (%d, %d): %w", action, path, err)
	}
	return graph.OpType(op), nil
}

func deleteAccess(ctx context.Context, q querier, action graph.ActionID, path graph.PathID) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM accesses WHERE action_id = ? AND path_id = ?
	`, action, path)
	if err != nil {
		return fmt.Errorf("delete access (%d, %d): %w", action, path, err)
	}
	return nil
}

// AccessState returns the observable state recorded for a pair.
// Returns graph.ErrNotFound if the action never accessed the path.
func (s *Store) AccessState(ctx context.Context, action graph.ActionID, path graph.PathID) (graph.OpType, error) {
	op, err := accessState(ctx, s.q(), action, path)
	if err != nil {
		return graph.OpUnspecified, err
	}
	if op == graph.OpUnspecified {
		return graph.OpUnspecified, graph.Errorf(graph.CodeNotFound, "access state", "action %d has no access to path %d", action, path)
	}
	return op.Observable(), nil
}

// RemoveAccess deletes the record for a pair. Removing a missing record is not
// an error.
func (s *Store) RemoveAccess(ctx context.Context, action graph.ActionID, path graph.PathID) error {
	return deleteAccess(ctx, s.q(), action, path)
}

// FilesAccessed returns the paths action accessed with an observable state
// matching filter (graph.OpUnspecified matches any), in id order.
func (s *Store) FilesAccessed(ctx context.Context, action graph.ActionID, filter graph.OpType) ([]graph.PathID, error) {
	return s.FilesAccessedByAny(ctx, []graph.ActionID{action}, filter)
}

// ActionsThatAccess returns the actions that accessed path with an observable
// state matching filter, in id order.
func (s *Store) ActionsThatAccess(ctx context.Context, path graph.PathID, filter graph.OpType) ([]graph.ActionID, error) {
	return s.ActionsAccessingAny(ctx, []graph.PathID{path}, filter)
}

// FilesAccessedByAny returns the distinct paths accessed by any of actions
// with a state matching any of filters. No filters means any state.
func (s *Store) FilesAccessedByAny(ctx context.Context, actions []graph.ActionID, filters ...graph.OpType) ([]graph.PathID, error) {
	states, err := expandFilters(filters)
	if err != nil {
		return nil, err
	}

	seen := graph.NewPathSet()
	for start := 0; start < len(actions); start += maxInParams {
		chunk := actions[start:min(start+maxInParams, len(actions))]

		args := make([]any, 0, len(chunk)+len(states))
		for _, a := range chunk {
			args = append(args, a)
		}
		args = append(args, states...)

		rows, err := s.q().QueryContext(ctx, `
			SELECT DISTINCT path_id FROM accesses
			WHERE action_id IN (`+placeholders(len(chunk))+`)
			AND op IN (`+placeholders(len(states))+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("query files accessed: %w", err)
		}
		ids, err := scanPathIDs(rows)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen.Add(id)
		}
	}
	return seen.Sorted(), nil
}

// ActionsAccessingAny returns the distinct live actions that accessed any of
// paths with a state matching any of filters. No filters means any state.
func (s *Store) ActionsAccessingAny(ctx context.Context, paths []graph.PathID, filters ...graph.OpType) ([]graph.ActionID, error) {
	states, err := expandFilters(filters)
	if err != nil {
		return nil, err
	}

	seen := graph.NewActionSet()
	for start := 0; start < len(paths); start += maxInParams {
		chunk := paths[start:min(start+maxInParams, len(paths))]

		args := make([]any, 0, len(chunk)+len(states))
		for _, p := range chunk {
			args = append(args, p)
		}
		args = append(args, states...)

		rows, err := s.q().QueryContext(ctx, `
			SELECT DISTINCT action_id FROM accesses
			WHERE path_id IN (`+placeholders(len(chunk))+`)
			AND op IN (`+placeholders(len(states))+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("query actions accessing: %w", err)
		}
		ids, err := scanActionIDs(rows)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen.Add(id)
		}
	}
	return seen.Sorted(), nil
}

// PathsWithOps returns the distinct paths that have at least one record in a
// state matching any of filters.
func (s *Store) PathsWithOps(ctx context.Context, filters ...graph.OpType) ([]graph.PathID, error) {
	states, err := expandFilters(filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.q().QueryContext(ctx, `
		SELECT DISTINCT path_id FROM accesses
		WHERE op IN (`+placeholders(len(states))+`)
		ORDER BY path_id ASC
	`, states...)
	if err != nil {
		return nil, fmt.Errorf("query paths with ops: %w", err)
	}
	return scanPathIDs(rows)
}

// AccessCount is the number of actions that accessed a file.
type AccessCount struct {
	Path  graph.PathID `json:"path_id"`
	Count int          `json:"count"`
}

// AccessCounts returns every accessed live file with its number of accessing
// actions, highest count first and then by id. Directories are excluded.
func (s *Store) AccessCounts(ctx context.Context) ([]AccessCount, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT a.path_id, COUNT(*) AS n
		FROM accesses a JOIN paths p ON p.id = a.path_id
		WHERE p.kind = ? AND p.trashed = 0
		GROUP BY a.path_id
		ORDER BY n DESC, a.path_id ASC
	`, kindFile)
	if err != nil {
		return nil, fmt.Errorf("query access counts: %w", err)
	}
	defer rows.Close()

	counts := []AccessCount{}
	for rows.Next() {
		var c AccessCount
		if err := rows.Scan(&c.Path, &c.Count); err != nil {
			return nil, fmt.Errorf("scan access count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access counts: %w", err)
	}
	return counts, nil
}

// expandFilters turns observable filters into stored states as SQL args.
func expandFilters(filters []graph.OpType) ([]any, error) {
	if len(filters) == 0 {
		filters = []graph.OpType{graph.OpUnspecified}
	}
	seen := make(map[graph.OpType]bool)
	var states []any
	for _, f := range filters {
		expanded, err := graph.StoredStates(f)
		if err != nil {
			return nil, err
		}
		for _, st := range expanded {
			if !seen[st] {
				seen[st] = true
				states = append(states, int(st))
			}
		}
	}
	return states, nil
}

// placeholders builds "?,?,?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
