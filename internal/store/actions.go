package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/buildml/internal/graph"
)

// actionRow is one row of the actions table.
type actionRow struct {
	ID        graph.ActionID
	Parent    graph.ActionID
	Directory graph.PathID
	Command   string
	Trashed   bool
}

func readAction(ctx context.Context, q querier, id graph.ActionID) (row actionRow, ok bool, err error) {
	var trashed int
	err = q.QueryRowContext(ctx, `
		SELECT id, parent_id, directory_id, command, trashed FROM actions WHERE id = ?
	`, id).Scan(&row.ID, &row.Parent, &row.Directory, &row.Command, &trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return actionRow{}, false, nil
	}
	if err != nil {
		return actionRow{}, false, fmt.Errorf("read action %d: %w", id, err)
	}
	row.Trashed = trashed != 0
	return row, true, nil
}

// liveAction loads an action that must exist and not be trashed.
func liveAction(ctx context.Context, q querier, id graph.ActionID, op string) (actionRow, error) {
	row, ok, err := readAction(ctx, q, id)
	if err != nil {
		return actionRow{}, err
	}
	if !ok {
		return actionRow{}, graph.Errorf(graph.CodeBadValue, op, "no action with id %d", id)
	}
	if row.Trashed {
		return actionRow{}, graph.Errorf(graph.CodeBadValue, op, "action %d is trashed", id)
	}
	return row, nil
}

func (s *Store) actionByID(ctx context.Context, id graph.ActionID, op string) (actionRow, error) {
	row, ok, err := readAction(ctx, s.q(), id)
	if err != nil {
		return actionRow{}, err
	}
	if !ok {
		return actionRow{}, graph.Errorf(graph.CodeBadValue, op, "no action with id %d", id)
	}
	return row, nil
}

// RootAction returns the universal root action, creating it with label as
// its command on first use. Later calls return the same id and ignore label.
func (s *Store) RootAction(ctx context.Context, label string) (graph.ActionID, error) {
	_, err := s.q().ExecContext(ctx, `
		INSERT INTO actions (id, parent_id, directory_id, command, trashed)
		VALUES (0, 0, 0, ?, 0)
		ON CONFLICT(id) DO NOTHING
	`, label)
	if err != nil {
		return graph.InvalidAction, fmt.Errorf("create root action: %w", err)
	}
	return graph.RootAction, nil
}

// AddAction records a command run in dir as a child of parent.
//
// Errors:
//   - graph.ErrBadValue: parent or dir is missing or trashed
//   - graph.ErrNotADirectory: dir is a file
func (s *Store) AddAction(ctx context.Context, parent graph.ActionID, dir graph.PathID, command string) (graph.ActionID, error) {
	const op = "add action"
	id := graph.InvalidAction
	err := s.atomically(ctx, op, func(q querier) error {
		if _, err := liveAction(ctx, q, parent, op); err != nil {
			return err
		}
		d, err := livePath(ctx, q, dir, graph.CodeBadValue, op)
		if err != nil {
			return err
		}
		if d.Kind != graph.KindDirectory {
			return graph.Errorf(graph.CodeNotADirectory, op, "working directory %d is a file", dir)
		}

		res, err := q.ExecContext(ctx, `
			INSERT INTO actions (parent_id, directory_id, command, trashed) VALUES (?, ?, ?, 0)
		`, parent, dir, command)
		if err != nil {
			return fmt.Errorf("%s: insert: %w", op, err)
		}
		n, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%s: last insert id: %w", op, err)
		}
		id = graph.ActionID(n)
		return nil
	})
	if err != nil {
		return graph.InvalidAction, err
	}
	return id, nil
}

// Command returns the command text of an action.
func (s *Store) Command(ctx context.Context, id graph.ActionID) (string, error) {
	row, err := s.actionByID(ctx, id, "get command")
	if err != nil {
		return "", err
	}
	return row.Command, nil
}

// CommandSummary returns the command shortened to width runes.
// See graph.SummarizeCommand.
func (s *Store) CommandSummary(ctx context.Context, id graph.ActionID, width int) (string, error) {
	cmd, err := s.Command(ctx, id)
	if err != nil {
		return "", err
	}
	return graph.SummarizeCommand(cmd, width)
}

// ActionParent returns the parent of id.
// Returns graph.ErrNotFound for the root action and graph.ErrBadValue for an
// unknown id.
func (s *Store) ActionParent(ctx context.Context, id graph.ActionID) (graph.ActionID, error) {
	row, err := s.actionByID(ctx, id, "get parent")
	if err != nil {
		return graph.InvalidAction, err
	}
	if id == graph.RootAction {
		return graph.InvalidAction, graph.NewError(graph.CodeNotFound, "get parent", "the root action has no parent")
	}
	return row.Parent, nil
}

// ActionDirectory returns the working directory of id.
func (s *Store) ActionDirectory(ctx context.Context, id graph.ActionID) (graph.PathID, error) {
	row, err := s.actionByID(ctx, id, "get directory")
	if err != nil {
		return graph.InvalidPath, err
	}
	return row.Directory, nil
}

// IsActionTrashed reports whether id is in the trash.
func (s *Store) IsActionTrashed(ctx context.Context, id graph.ActionID) (bool, error) {
	row, err := s.actionByID(ctx, id, "is trashed")
	if err != nil {
		return false, err
	}
	return row.Trashed, nil
}

// ChildActions returns the live children of id, in id order.
func (s *Store) ChildActions(ctx context.Context, id graph.ActionID) ([]graph.ActionID, error) {
	if _, err := s.actionByID(ctx, id, "list children"); err != nil {
		return nil, err
	}
	rows, err := s.q().QueryContext(ctx, `
		SELECT id FROM actions
		WHERE parent_id = ? AND id <> 0 AND trashed = 0
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query child actions: %w", err)
	}
	return scanActionIDs(rows)
}

// ActionsInDirectory returns the live actions whose working directory is dir.
func (s *Store) ActionsInDirectory(ctx context.Context, dir graph.PathID) ([]graph.ActionID, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT id FROM actions
		WHERE directory_id = ? AND trashed = 0
		ORDER BY id ASC
	`, dir)
	if err != nil {
		return nil, fmt.Errorf("query actions in directory: %w", err)
	}
	return scanActionIDs(rows)
}

// FindActions returns live actions whose command contains substr.
func (s *Store) FindActions(ctx context.Context, substr string) ([]graph.ActionID, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT id FROM actions
		WHERE trashed = 0 AND instr(command, ?) > 0
		ORDER BY id ASC
	`, substr)
	if err != nil {
		return nil, fmt.Errorf("find actions: %w", err)
	}
	return scanActionIDs(rows)
}

// TrashAction soft-deletes a leaf action. Trashing a trashed action is a no-op.
//
// Errors:
//   - graph.ErrBadValue: no such action
//   - graph.ErrCantRemove: id is the root action, has live children, or has
//     recorded accesses
func (s *Store) TrashAction(ctx context.Context, id graph.ActionID) error {
	const op = "trash action"
	return s.atomically(ctx, op, func(q querier) error {
		row, ok, err := readAction(ctx, q, id)
		if err != nil {
			return err
		}
		if !ok {
			return graph.Errorf(graph.CodeBadValue, op, "no action with id %d", id)
		}
		if row.Trashed {
			return nil
		}
		if id == graph.RootAction {
			return graph.NewError(graph.CodeCantRemove, op, "the root action cannot be trashed")
		}

		var children, accesses int
		err = q.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM actions WHERE parent_id = ?1 AND id <> 0 AND trashed = 0),
				(SELECT COUNT(*) FROM accesses WHERE action_id = ?1)
		`, id).Scan(&children, &accesses)
		if err != nil {
			return fmt.Errorf("%s: check references: %w", op, err)
		}
		if children > 0 {
			return graph.Errorf(graph.CodeCantRemove, op, "action %d has children", id)
		}
		if accesses > 0 {
			return graph.Errorf(graph.CodeCantRemove, op, "action %d has recorded accesses", id)
		}

		if _, err := q.ExecContext(ctx, `UPDATE actions SET trashed = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// ReviveAction restores a trashed action. Reviving a live action is a no-op.
// Returns graph.ErrCantRevive if the parent is trashed.
func (s *Store) ReviveAction(ctx context.Context, id graph.ActionID) error {
	const op = "revive action"
	return s.atomically(ctx, op, func(q querier) error {
		row, ok, err := readAction(ctx, q, id)
		if err != nil {
			return err
		}
		if !ok {
			return graph.Errorf(graph.CodeBadValue, op, "no action with id %d", id)
		}
		if !row.Trashed {
			return nil
		}
		parent, ok, err := readAction(ctx, q, row.Parent)
		if err != nil {
			return err
		}
		if !ok || parent.Trashed {
			return graph.Errorf(graph.CodeCantRevive, op, "parent of action %d is trashed", id)
		}

		if _, err := q.ExecContext(ctx, `UPDATE actions SET trashed = 0 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// scanActionIDs drains rows of a single id column. Returns an empty slice (not nil).
func scanActionIDs(rows *sql.Rows) ([]graph.ActionID, error) {
	defer rows.Close()

	ids := []graph.ActionID{}
	for rows.Next() {
		var id graph.ActionID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan action id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action ids: %w", err)
	}
	return ids, nil
}
