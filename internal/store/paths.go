package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/buildml/internal/graph"
)

const (
	kindDirectory = int(graph.KindDirectory)
	kindFile      = int(graph.KindFile)
)

// pathRow is one row of the paths table.
type pathRow struct {
	ID      graph.PathID
	Parent  graph.PathID
	Name    string
	Kind    graph.PathKind
	Trashed bool
}

// readPath loads a path row by id. Returns ok=false if no such row exists.
func readPath(ctx context.Context, q querier, id graph.PathID) (row pathRow, ok bool, err error) {
	var kind, trashed int
	err = q.QueryRowContext(ctx, `
		SELECT id, parent_id, name, kind, trashed FROM paths WHERE id = ?
	`, id).Scan(&row.ID, &row.Parent, &row.Name, &kind, &trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return pathRow{}, false, nil
	}
	if err != nil {
		return pathRow{}, false, fmt.Errorf("read path %d: %w", id, err)
	}
	row.Kind = graph.PathKind(kind)
	row.Trashed = trashed != 0
	return row, true, nil
}

// readChild loads the child of parent called name, trashed or not.
func readChild(ctx context.Context, q querier, parent graph.PathID, name string) (row pathRow, ok bool, err error) {
	var kind, trashed int
	err = q.QueryRowContext(ctx, `
		SELECT id, parent_id, name, kind, trashed FROM paths
		WHERE parent_id = ? AND name = ? AND id <> 0
	`, parent, name).Scan(&row.ID, &row.Parent, &row.Name, &kind, &trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return pathRow{}, false, nil
	}
	if err != nil {
		return pathRow{}, false, fmt.Errorf("read child %q of %d: %w", name, parent, err)
	}
	row.Kind = graph.PathKind(kind)
	row.Trashed = trashed != 0
	return row, true, nil
}

// livePath loads a path that must exist and not be trashed. Anything else is
// reported with code.
func livePath(ctx context.Context, q querier, id graph.PathID, code graph.Code, op string) (pathRow, error) {
	row, ok, err := readPath(ctx, q, id)
	if err != nil {
		return pathRow{}, err
	}
	if !ok {
		return pathRow{}, graph.Errorf(code, op, "no path with id %d", id)
	}
	if row.Trashed {
		return pathRow{}, graph.Errorf(code, op, "path %d is trashed", id)
	}
	return row, nil
}

// AddChild adds a file or directory called name under parent, or returns the
// id of the existing child if one of the same kind is already there.
//
// Errors:
//   - graph.ErrBadPath: parent is missing, trashed or a file; name is not a
//     valid component; or an existing child has the other kind
//   - graph.ErrAlreadyUsed: a trashed child still reserves the name
func (s *Store) AddChild(ctx context.Context, parent graph.PathID, kind graph.PathKind, name string) (graph.PathID, error) {
	id := graph.InvalidPath
	err := s.atomically(ctx, "add child", func(q querier) error {
		var err error
		id, err = addChild(ctx, q, parent, kind, name)
		return err
	})
	if err != nil {
		return graph.InvalidPath, err
	}
	return id, nil
}

func addChild(ctx context.Context, q querier, parent graph.PathID, kind graph.PathKind, name string) (graph.PathID, error) {
	const op = "add child"

	if kind != graph.KindFile && kind != graph.KindDirectory {
		return graph.InvalidPath, graph.Errorf(graph.CodeBadValue, op, "invalid path kind %v", kind)
	}
	name = graph.NormalizeName(name)
	if !graph.ValidPathComponent(name) {
		return graph.InvalidPath, graph.Errorf(graph.CodeBadPath, op, "invalid path component %q", name)
	}

	p, err := livePath(ctx, q, parent, graph.CodeBadPath, op)
	if err != nil {
		return graph.InvalidPath, err
	}
	if p.Kind != graph.KindDirectory {
		return graph.InvalidPath, graph.Errorf(graph.CodeBadPath, op, "cannot add %q under file %q", name, p.Name)
	}

	existing, ok, err := readChild(ctx, q, parent, name)
	if err != nil {
		return graph.InvalidPath, err
	}
	if ok {
		if existing.Trashed {
			return graph.InvalidPath, graph.Errorf(graph.CodeAlreadyUsed, op, "name %q is held by a trashed path", name)
		}
		if existing.Kind != kind {
			return graph.InvalidPath, graph.Errorf(graph.CodeBadPath, op, "%q already exists as a %v", name, existing.Kind)
		}
		return existing.ID, nil
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO paths (parent_id, name, kind, trashed) VALUES (?, ?, ?, 0)
	`, parent, name, int(kind))
	if err != nil {
		return graph.InvalidPath, fmt.Errorf("%s: insert: %w", op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return graph.InvalidPath, fmt.Errorf("%s: last insert id: %w", op, err)
	}
	return graph.PathID(id), nil
}

// Child returns the live child of parent called name.
// Returns graph.ErrNotFound if there is none (or it is trashed).
func (s *Store) Child(ctx context.Context, parent graph.PathID, name string) (graph.PathID, error) {
	row, ok, err := readChild(ctx, s.q(), parent, graph.NormalizeName(name))
	if err != nil {
		return graph.InvalidPath, err
	}
	if !ok || row.Trashed {
		return graph.InvalidPath, graph.Errorf(graph.CodeNotFound, "get child", "%q not found under %d", name, parent)
	}
	return row.ID, nil
}

// AddFile adds a file at spec, creating any missing parent directories.
func (s *Store) AddFile(ctx context.Context, spec string) (graph.PathID, error) {
	return s.AddPath(ctx, graph.KindFile, spec)
}

// AddDirectory adds a directory at spec, creating any missing parents.
func (s *Store) AddDirectory(ctx context.Context, spec string) (graph.PathID, error) {
	return s.AddPath(ctx, graph.KindDirectory, spec)
}

// AddPath resolves spec one component at a time, creating whatever is
// missing. Intermediate components are directories; the last one has the
// given kind. spec is either absolute ("/a/b") or root-relative ("@src/a/b").
//
// Re-adding an existing path of the same kind returns its id. If any
// component fails, nothing is created.
func (s *Store) AddPath(ctx context.Context, kind graph.PathKind, spec string) (graph.PathID, error) {
	id := graph.InvalidPath
	err := s.atomically(ctx, "add path", func(q querier) error {
		start, comps, err := parseSpec(ctx, q, spec)
		if err != nil {
			return err
		}
		if len(comps) == 0 {
			if kind != graph.KindDirectory {
				return graph.Errorf(graph.CodeBadPath, "add path", "%q names a directory", spec)
			}
			id = start
			return nil
		}

		cur := start
		for i, name := range comps {
			k := graph.KindDirectory
			if i == len(comps)-1 {
				k = kind
			}
			cur, err = addChild(ctx, q, cur, k, name)
			if err != nil {
				return err
			}
		}
		id = cur
		return nil
	})
	if err != nil {
		return graph.InvalidPath, err
	}
	return id, nil
}

// LookupPath resolves spec without creating anything.
// Returns graph.ErrBadPath at the first missing, trashed or malformed component.
func (s *Store) LookupPath(ctx context.Context, spec string) (graph.PathID, error) {
	q := s.q()
	start, comps, err := parseSpec(ctx, q, spec)
	if err != nil {
		return graph.InvalidPath, err
	}

	cur := start
	for _, name := range comps {
		row, ok, err := readChild(ctx, q, cur, name)
		if err != nil {
			return graph.InvalidPath, err
		}
		if !ok || row.Trashed {
			return graph.InvalidPath, graph.Errorf(graph.CodeBadPath, "get path", "%q not found in %q", name, spec)
		}
		cur = row.ID
	}
	return cur, nil
}

// parseSpec splits spec into a starting directory and normalized components.
// Empty components are skipped; "." and ".." are rejected.
func parseSpec(ctx context.Context, q querier, spec string) (graph.PathID, []string, error) {
	const op = "parse path"

	var start graph.PathID
	var rest string
	switch {
	case strings.HasPrefix(spec, "/"):
		start, rest = graph.RootPath, spec
	case strings.HasPrefix(spec, "@"):
		name, tail, _ := strings.Cut(spec[1:], "/")
		id, err := rootPath(ctx, q, name)
		if errors.Is(err, graph.ErrNotFound) {
			return graph.InvalidPath, nil, graph.Errorf(graph.CodeBadPath, op, "unknown root %q in %q", name, spec)
		}
		if err != nil {
			return graph.InvalidPath, nil, err
		}
		start, rest = id, tail
	default:
		return graph.InvalidPath, nil, graph.Errorf(graph.CodeBadPath, op, "%q is neither absolute nor root-relative", spec)
	}

	var comps []string
	for _, c := range strings.Split(rest, "/") {
		if c == "" {
			continue
		}
		c = graph.NormalizeName(c)
		if !graph.ValidPathComponent(c) {
			return graph.InvalidPath, nil, graph.Errorf(graph.CodeBadPath, op, "invalid component %q in %q", c, spec)
		}
		comps = append(comps, c)
	}
	return start, comps, nil
}

// ChildPaths returns the live children of parent, ordered by name.
func (s *Store) ChildPaths(ctx context.Context, parent graph.PathID) ([]graph.PathID, error) {
	q := s.q()
	if _, err := livePath(ctx, q, parent, graph.CodeBadPath, "list children"); err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM paths
		WHERE parent_id = ? AND id <> 0 AND trashed = 0
		ORDER BY name COLLATE BINARY ASC
	`, parent)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	return scanPathIDs(rows)
}

// PathParent returns the parent of id. The root directory is its own parent.
func (s *Store) PathParent(ctx context.Context, id graph.PathID) (graph.PathID, error) {
	row, err := s.pathByID(ctx, id, "get parent")
	if err != nil {
		return graph.InvalidPath, err
	}
	return row.Parent, nil
}

// PathBaseName returns the last component of id ("" for the root).
func (s *Store) PathBaseName(ctx context.Context, id graph.PathID) (string, error) {
	row, err := s.pathByID(ctx, id, "get base name")
	if err != nil {
		return "", err
	}
	return row.Name, nil
}

// PathKind returns whether id is a file or a directory.
func (s *Store) PathKind(ctx context.Context, id graph.PathID) (graph.PathKind, error) {
	row, err := s.pathByID(ctx, id, "get kind")
	if err != nil {
		return 0, err
	}
	return row.Kind, nil
}

// IsPathTrashed reports whether id is in the trash.
func (s *Store) IsPathTrashed(ctx context.Context, id graph.PathID) (bool, error) {
	row, err := s.pathByID(ctx, id, "is trashed")
	if err != nil {
		return false, err
	}
	return row.Trashed, nil
}

// pathByID loads any path row, trashed or not.
func (s *Store) pathByID(ctx context.Context, id graph.PathID, op string) (pathRow, error) {
	row, ok, err := readPath(ctx, s.q(), id)
	if err != nil {
		return pathRow{}, err
	}
	if !ok {
		return pathRow{}, graph.Errorf(graph.CodeBadPath, op, "no path with id %d", id)
	}
	return row, nil
}

// ancestor is one step of a path's chain up to "/".
type ancestor struct {
	ID   graph.PathID
	Name string
	Root string // root bound at this node, or ""
}

// ancestors returns id and each of its parents, nearest first, ending at "/".
func ancestors(ctx context.Context, q querier, id graph.PathID) ([]ancestor, error) {
	rows, err := q.QueryContext(ctx, `
		WITH RECURSIVE chain(id, parent_id, name, depth) AS (
			SELECT id, parent_id, name, 0 FROM paths WHERE id = ?
			UNION ALL
			SELECT p.id, p.parent_id, p.name, c.depth + 1
			FROM paths p JOIN chain c ON p.id = c.parent_id
			WHERE c.id <> 0
		)
		SELECT c.id, c.name, COALESCE(r.name, '')
		FROM chain c LEFT JOIN roots r ON r.path_id = c.id
		ORDER BY c.depth ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query ancestors: %w", err)
	}
	defer rows.Close()

	var chain []ancestor
	for rows.Next() {
		var a ancestor
		if err := rows.Scan(&a.ID, &a.Name, &a.Root); err != nil {
			return nil, fmt.Errorf("scan ancestor: %w", err)
		}
		chain = append(chain, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ancestors: %w", err)
	}
	return chain, nil
}

// PathName renders id as "/a/b/c". With showRoots, the nearest enclosing
// root replaces the leading part, giving "@src/b/c" (or "@src" for the
// root's own directory).
func (s *Store) PathName(ctx context.Context, id graph.PathID, showRoots bool) (string, error) {
	chain, err := ancestors(ctx, s.q(), id)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "", graph.Errorf(graph.CodeBadPath, "path name", "no path with id %d", id)
	}

	var names []string
	prefix := ""
	for _, a := range chain {
		if showRoots && a.Root != "" {
			prefix = "@" + a.Root
			break
		}
		if a.ID != graph.RootPath {
			names = append(names, a.Name)
		}
	}

	// names is nearest-first; reverse into display order.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	joined := strings.Join(names, "/")

	if prefix != "" {
		if joined == "" {
			return prefix, nil
		}
		return prefix + "/" + joined, nil
	}
	return "/" + joined, nil
}

// AllFiles returns every live file, in id order.
func (s *Store) AllFiles(ctx context.Context) ([]graph.PathID, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT id FROM paths WHERE kind = ? AND trashed = 0 ORDER BY id ASC
	`, kindFile)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	return scanPathIDs(rows)
}

// FindPaths returns live paths whose base name matches the glob pattern
// ("*.c", "cat.?"), in id order.
func (s *Store) FindPaths(ctx context.Context, pattern string) ([]graph.PathID, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT id FROM paths
		WHERE id <> 0 AND trashed = 0 AND name GLOB ?
		ORDER BY id ASC
	`, graph.NormalizeName(pattern))
	if err != nil {
		return nil, fmt.Errorf("find paths: %w", err)
	}
	return scanPathIDs(rows)
}

// TrashPath soft-deletes a leaf path. Trashing an already trashed path is a
// no-op. On success any attributes on the path are purged.
//
// Errors:
//   - graph.ErrBadPath: no such path
//   - graph.ErrCantRemove: the path is "/", or has live children, is an
//     action's working directory, is the target of an access, has a root
//     bound to it, or takes part in an include relationship
func (s *Store) TrashPath(ctx context.Context, id graph.PathID) error {
	const op = "trash path"
	return s.atomically(ctx, op, func(q querier) error {
		row, ok, err := readPath(ctx, q, id)
		if err != nil {
			return err
		}
		if !ok {
			return graph.Errorf(graph.CodeBadPath, op, "no path with id %d", id)
		}
		if row.Trashed {
			return nil
		}
		if id == graph.RootPath {
			return graph.NewError(graph.CodeCantRemove, op, "the root directory cannot be trashed")
		}

		if reason, err := pathInUse(ctx, q, id); err != nil {
			return err
		} else if reason != "" {
			return graph.Errorf(graph.CodeCantRemove, op, "path %d %s", id, reason)
		}

		blocked, err := s.includesBlocking(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: check includes: %w", op, err)
		}
		if blocked {
			return graph.Errorf(graph.CodeCantRemove, op, "path %d is part of an include relationship", id)
		}

		if _, err := q.ExecContext(ctx, `UPDATE paths SET trashed = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := s.purgeAttributes(ctx, id); err != nil {
			return fmt.Errorf("%s: purge attributes: %w", op, err)
		}
		return nil
	})
}

// pathInUse explains why id cannot leave the namespace, or returns "" if
// nothing in the store refers to it.
func pathInUse(ctx context.Context, q querier, id graph.PathID) (string, error) {
	var children, dirUses, accesses, roots int
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM paths WHERE parent_id = ?1 AND id <> 0 AND trashed = 0),
			(SELECT COUNT(*) FROM actions WHERE directory_id = ?1),
			(SELECT COUNT(*) FROM accesses WHERE path_id = ?1),
			(SELECT COUNT(*) FROM roots WHERE path_id = ?1)
	`, id).Scan(&children, &dirUses, &accesses, &roots)
	if err != nil {
		return "", fmt.Errorf("check path references: %w", err)
	}

	switch {
	case children > 0:
		return "has children", nil
	case dirUses > 0:
		return "is an action's working directory", nil
	case accesses > 0:
		return "is accessed by an action", nil
	case roots > 0:
		return "has a root bound to it", nil
	}
	return "", nil
}

// RevivePath restores a trashed path. Reviving a live path is a no-op.
// Returns graph.ErrCantRevive if the parent is itself trashed.
func (s *Store) RevivePath(ctx context.Context, id graph.PathID) error {
	const op = "revive path"
	return s.atomically(ctx, op, func(q querier) error {
		row, ok, err := readPath(ctx, q, id)
		if err != nil {
			return err
		}
		if !ok {
			return graph.Errorf(graph.CodeBadPath, op, "no path with id %d", id)
		}
		if !row.Trashed {
			return nil
		}

		parent, ok, err := readPath(ctx, q, row.Parent)
		if err != nil {
			return err
		}
		if !ok || parent.Trashed {
			return graph.Errorf(graph.CodeCantRevive, op, "parent of path %d is trashed", id)
		}

		if _, err := q.ExecContext(ctx, `UPDATE paths SET trashed = 0 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// scanPathIDs drains rows of a single id column. Returns an empty slice (not nil).
func scanPathIDs(rows *sql.Rows) ([]graph.PathID, error) {
	defer rows.Close()

	ids := []graph.PathID{}
	for rows.Next() {
		var id graph.PathID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan path id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate path ids: %w", err)
	}
	return ids, nil
}
