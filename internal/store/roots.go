package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/buildml/internal/graph"
)

// Root is a name bound to a directory.
type Root struct {
	Name string       `json:"name"`
	Path graph.PathID `json:"path_id"`
}

// rootPath returns the directory bound to name, or graph.ErrNotFound.
func rootPath(ctx context.Context, q querier, name string) (graph.PathID, error) {
	var id graph.PathID
	err := q.QueryRowContext(ctx, `SELECT path_id FROM roots WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.InvalidPath, graph.Errorf(graph.CodeNotFound, "get root", "no root named %q", name)
	}
	if err != nil {
		return graph.InvalidPath, fmt.Errorf("read root %q: %w", name, err)
	}
	return id, nil
}

// rootAt returns the root bound to id, or "" if there is none.
func rootAt(ctx context.Context, q querier, id graph.PathID) (string, error) {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM roots WHERE path_id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read root at %d: %w", id, err)
	}
	return name, nil
}

// rootTarget checks that id can carry a root: a live directory.
func rootTarget(ctx context.Context, q querier, id graph.PathID, op string) error {
	row, err := livePath(ctx, q, id, graph.CodeBadPath, op)
	if err != nil {
		return err
	}
	if row.Kind != graph.KindDirectory {
		return graph.Errorf(graph.CodeBadPath, op, "path %d is not a directory", id)
	}
	return nil
}

// AddRoot binds name to the directory id.
//
// Errors, checked in this order:
//   - graph.ErrInvalidName: name is empty or contains '@', ':' or whitespace
//   - graph.ErrAlreadyUsed: name is already bound
//   - graph.ErrBadPath: id is missing, trashed or not a directory
//   - graph.ErrOnlyOneAllowed: id already has a root
func (s *Store) AddRoot(ctx context.Context, name string, id graph.PathID) error {
	const op = "add root"
	return s.atomically(ctx, op, func(q querier) error {
		if !graph.ValidRootName(name) {
			return graph.Errorf(graph.CodeInvalidName, op, "invalid root name %q", name)
		}
		if _, err := rootPath(ctx, q, name); err == nil {
			return graph.Errorf(graph.CodeAlreadyUsed, op, "root %q already exists", name)
		} else if !errors.Is(err, graph.ErrNotFound) {
			return err
		}
		if err := rootTarget(ctx, q, id, op); err != nil {
			return err
		}
		if existing, err := rootAt(ctx, q, id); err != nil {
			return err
		} else if existing != "" {
			return graph.Errorf(graph.CodeOnlyOneAllowed, op, "path %d already has root %q", id, existing)
		}

		if _, err := q.ExecContext(ctx, `INSERT INTO roots (name, path_id) VALUES (?, ?)`, name, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// MoveRoot rebinds an existing root to the directory id.
func (s *Store) MoveRoot(ctx context.Context, name string, id graph.PathID) error {
	const op = "move root"
	return s.atomically(ctx, op, func(q querier) error {
		current, err := rootPath(ctx, q, name)
		if err != nil {
			return err
		}
		if err := rootTarget(ctx, q, id, op); err != nil {
			return err
		}
		if current == id {
			return nil
		}
		if existing, err := rootAt(ctx, q, id); err != nil {
			return err
		} else if existing != "" {
			return graph.Errorf(graph.CodeOnlyOneAllowed, op, "path %d already has root %q", id, existing)
		}

		if _, err := q.ExecContext(ctx, `UPDATE roots SET path_id = ? WHERE name = ?`, id, name); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// DeleteRoot removes the binding for name. The directory is untouched.
func (s *Store) DeleteRoot(ctx context.Context, name string) error {
	res, err := s.q().ExecContext(ctx, `DELETE FROM roots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete root: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete root: rows affected: %w", err)
	}
	if n == 0 {
		return graph.Errorf(graph.CodeNotFound, "delete root", "no root named %q", name)
	}
	return nil
}

// RootPath returns the directory bound to name.
func (s *Store) RootPath(ctx context.Context, name string) (graph.PathID, error) {
	return rootPath(ctx, s.q(), name)
}

// RootAtPath returns the root bound exactly at id.
// Returns graph.ErrNotFound if id carries no root.
func (s *Store) RootAtPath(ctx context.Context, id graph.PathID) (string, error) {
	name, err := rootAt(ctx, s.q(), id)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", graph.Errorf(graph.CodeNotFound, "root at path", "no root at path %d", id)
	}
	return name, nil
}

// EnclosingRoot returns the nearest root on the chain from id up to "/",
// including id itself. Returns graph.ErrNotFound if no ancestor has one.
func (s *Store) EnclosingRoot(ctx context.Context, id graph.PathID) (string, error) {
	chain, err := ancestors(ctx, s.q(), id)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "", graph.Errorf(graph.CodeBadPath, "enclosing root", "no path with id %d", id)
	}
	for _, a := range chain {
		if a.Root != "" {
			return a.Root, nil
		}
	}
	return "", graph.Errorf(graph.CodeNotFound, "enclosing root", "no root encloses path %d", id)
}

// Roots returns every root, sorted by name.
func (s *Store) Roots(ctx context.Context) ([]Root, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT name, path_id FROM roots ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query roots: %w", err)
	}
	defer rows.Close()

	roots := []Root{}
	for rows.Next() {
		var r Root
		if err := rows.Scan(&r.Name, &r.Path); err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}
		roots = append(roots, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roots: %w", err)
	}
	return roots, nil
}
