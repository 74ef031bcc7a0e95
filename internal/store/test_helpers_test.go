package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/buildml/internal/graph"
)

const (
	graphRoot = graph.RootPath
	opRead    = graph.OpRead
	opWrite   = graph.OpWrite
	opDelete  = graph.OpDelete
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bml")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustRootAction(t *testing.T, s *Store) graph.ActionID {
	t.Helper()
	id, err := s.RootAction(context.Background(), "root")
	if err != nil {
		t.Fatalf("RootAction() failed: %v", err)
	}
	return id
}

func mustAddFile(t *testing.T, s *Store, spec string) graph.PathID {
	t.Helper()
	id, err := s.AddFile(context.Background(), spec)
	if err != nil {
		t.Fatalf("AddFile(%q) failed: %v", spec, err)
	}
	return id
}

func mustAddDir(t *testing.T, s *Store, spec string) graph.PathID {
	t.Helper()
	id, err := s.AddDirectory(context.Background(), spec)
	if err != nil {
		t.Fatalf("AddDirectory(%q) failed: %v", spec, err)
	}
	return id
}

func mustAddAction(t *testing.T, s *Store, parent graph.ActionID, dir graph.PathID, cmd string) graph.ActionID {
	t.Helper()
	id, err := s.AddAction(context.Background(), parent, dir, cmd)
	if err != nil {
		t.Fatalf("AddAction(%q) failed: %v", cmd, err)
	}
	return id
}

func mustAccess(t *testing.T, s *Store, a graph.ActionID, p graph.PathID, op graph.OpType) graph.OpType {
	t.Helper()
	state, err := s.AddAccess(context.Background(), a, p, op)
	if err != nil {
		t.Fatalf("AddAccess(%d, %d, %v) failed: %v", a, p, op, err)
	}
	return state
}
