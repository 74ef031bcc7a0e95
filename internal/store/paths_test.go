package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buildml/internal/graph"
)

func TestAddPath_CreatesParents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	file := mustAddFile(t, s, "/home/pets/cat.c")

	dir, err := s.LookupPath(ctx, "/home/pets")
	require.NoError(t, err)

	parent, err := s.PathParent(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, dir, parent)

	kind, err := s.PathKind(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, graph.KindDirectory, kind)

	kind, err = s.PathKind(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, graph.KindFile, kind)
}

func TestAddPath_Idempotent(t *testing.T) {
	s := createTestStore(t)

	first := mustAddFile(t, s, "/src/main.c")
	second := mustAddFile(t, s, "/src//main.c")
	assert.Equal(t, first, second)
}

func TestAddPath_KindConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustAddFile(t, s, "/src/main.c")

	_, err := s.AddDirectory(ctx, "/src/main.c")
	assert.ErrorIs(t, err, graph.ErrBadPath)

	// A file cannot be a parent.
	_, err = s.AddFile(ctx, "/src/main.c/inner.h")
	assert.ErrorIs(t, err, graph.ErrBadPath)
}

func TestAddPath_InvalidSpecs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	specs := []string{
		"relative/path",
		"",
		"/a/./b",
		"/a/../b",
		"@missing/x",
	}
	for _, spec := range specs {
		t.Run(spec, func(t *testing.T) {
			_, err := s.AddFile(ctx, spec)
			assert.ErrorIs(t, err, graph.ErrBadPath)
		})
	}
}

func TestAddPath_RootDirectoryIsNotAFile(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AddFile(ctx, "/")
	assert.ErrorIs(t, err, graph.ErrBadPath)

	id, err := s.AddDirectory(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, graph.RootPath, id)
}

func TestAddPath_NormalizesUnicode(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	composed := mustAddFile(t, s, "/caf\u00e9.c")

	got, err := s.LookupPath(ctx, "/cafe\u0301.c")
	require.NoError(t, err)
	assert.Equal(t, composed, got)
}

func TestAddChild(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	dir, err := s.AddChild(ctx, graph.RootPath, graph.KindDirectory, "lib")
	require.NoError(t, err)

	file, err := s.AddChild(ctx, dir, graph.KindFile, "libc.a")
	require.NoError(t, err)

	got, err := s.Child(ctx, dir, "libc.a")
	require.NoError(t, err)
	assert.Equal(t, file, got)

	_, err = s.Child(ctx, dir, "missing")
	assert.ErrorIs(t, err, graph.ErrNotFound)

	_, err = s.AddChild(ctx, file, graph.KindFile, "x")
	assert.ErrorIs(t, err, graph.ErrBadPath, "files have no children")

	_, err = s.AddChild(ctx, dir, graph.KindFile, "a/b")
	assert.ErrorIs(t, err, graph.ErrBadPath)

	_, err = s.AddChild(ctx, 999, graph.KindFile, "x")
	assert.ErrorIs(t, err, graph.ErrBadPath)
}

func TestRootIsOwnParent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	parent, err := s.PathParent(ctx, graph.RootPath)
	require.NoError(t, err)
	assert.Equal(t, graph.RootPath, parent)

	name, err := s.PathBaseName(ctx, graph.RootPath)
	require.NoError(t, err)
	assert.Equal(t, "", name)

	full, err := s.PathName(ctx, graph.RootPath, false)
	require.NoError(t, err)
	assert.Equal(t, "/", full)
}

func TestPathName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	file := mustAddFile(t, s, "/home/pets/cat.c")
	dir := mustAddDir(t, s, "/home/pets")
	require.NoError(t, s.AddRoot(ctx, "pets", dir))

	plain, err := s.PathName(ctx, file, false)
	require.NoError(t, err)
	assert.Equal(t, "/home/pets/cat.c", plain)

	withRoots, err := s.PathName(ctx, file, true)
	require.NoError(t, err)
	assert.Equal(t, "@pets/cat.c", withRoots)

	rootDir, err := s.PathName(ctx, dir, true)
	require.NoError(t, err)
	assert.Equal(t, "@pets", rootDir)

	_, err = s.PathName(ctx, 12345, false)
	assert.ErrorIs(t, err, graph.ErrBadPath)
}

func TestChildPaths_SortedByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	z := mustAddFile(t, s, "/d/zebra")
	a := mustAddFile(t, s, "/d/ant")
	m := mustAddDir(t, s, "/d/mole")
	dir := mustAddDir(t, s, "/d")

	children, err := s.ChildPaths(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []graph.PathID{a, m, z}, children)

	require.NoError(t, s.TrashPath(ctx, a))
	children, err = s.ChildPaths(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []graph.PathID{m, z}, children)
}

func TestFindPaths(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	cat := mustAddFile(t, s, "/src/cat.c")
	dog := mustAddFile(t, s, "/src/dog.c")
	mustAddFile(t, s, "/src/dog.h")

	found, err := s.FindPaths(ctx, "*.c")
	require.NoError(t, err)
	assert.Equal(t, []graph.PathID{cat, dog}, found)

	found, err = s.FindPaths(ctx, "nothing*")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NotNil(t, found)
}

func TestAllFiles(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := mustAddFile(t, s, "/x/a")
	b := mustAddFile(t, s, "/y/b")
	mustAddDir(t, s, "/z")

	files, err := s.AllFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []graph.PathID{a, b}, files)
}

func TestTrashPath_ReservesName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	file := mustAddFile(t, s, "/out/tmp.o")
	require.NoError(t, s.TrashPath(ctx, file))

	trashed, err := s.IsPathTrashed(ctx, file)
	require.NoError(t, err)
	assert.True(t, trashed)

	_, err = s.LookupPath(ctx, "/out/tmp.o")
	assert.ErrorIs(t, err, graph.ErrBadPath)

	_, err = s.AddFile(ctx, "/out/tmp.o")
	assert.ErrorIs(t, err, graph.ErrAlreadyUsed)

	// Trashing twice is harmless.
	assert.NoError(t, s.TrashPath(ctx, file))
}

func TestTrashPath_Refusals(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	dir := mustAddDir(t, s, "/work")
	child := mustAddFile(t, s, "/work/in.c")
	used := mustAddFile(t, s, "/used.c")
	rooted := mustAddDir(t, s, "/rooted")
	workdir := mustAddDir(t, s, "/wd")

	a := mustAddAction(t, s, root, workdir, "cc")
	mustAccess(t, s, a, used, opRead)
	require.NoError(t, s.AddRoot(ctx, "r", rooted))

	tests := []struct {
		name string
		id   graph.PathID
	}{
		{"root directory", graph.RootPath},
		{"has children", dir},
		{"accessed", used},
		{"bound root", rooted},
		{"working directory", workdir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.TrashPath(ctx, tt.id)
			assert.ErrorIs(t, err, graph.ErrCantRemove)
		})
	}

	require.NoError(t, s.TrashPath(ctx, child))
	assert.NoError(t, s.TrashPath(ctx, dir), "trashed children no longer block")

	assert.ErrorIs(t, s.TrashPath(ctx, 4242), graph.ErrBadPath)
}

func TestRevivePath_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	dir := mustAddDir(t, s, "/gen")
	file := mustAddFile(t, s, "/gen/out.h")

	require.NoError(t, s.TrashPath(ctx, file))
	require.NoError(t, s.TrashPath(ctx, dir))

	assert.ErrorIs(t, s.RevivePath(ctx, file), graph.ErrCantRevive)

	require.NoError(t, s.RevivePath(ctx, dir))
	require.NoError(t, s.RevivePath(ctx, file))

	got, err := s.LookupPath(ctx, "/gen/out.h")
	require.NoError(t, err)
	assert.Equal(t, file, got)

	// Reviving a live path is a no-op.
	assert.NoError(t, s.RevivePath(ctx, file))
}

type fakeAttributes struct {
	purged []graph.PathID
}

func (f *fakeAttributes) PurgeAttributes(_ context.Context, path graph.PathID) error {
	f.purged = append(f.purged, path)
	return nil
}

type fakeIncludes struct {
	blocking map[graph.PathID]bool
}

func (f *fakeIncludes) IncludesBlocking(_ context.Context, path graph.PathID) (bool, error) {
	return f.blocking[path], nil
}

func TestTrashPath_Collaborators(t *testing.T) {
	attrs := &fakeAttributes{}
	includes := &fakeIncludes{blocking: map[graph.PathID]bool{}}
	s := createTestStore(t, WithAttributes(attrs), WithIncludes(includes))
	ctx := context.Background()

	header := mustAddFile(t, s, "/inc/stdio.h")
	plain := mustAddFile(t, s, "/inc/plain.h")
	includes.blocking[header] = true

	assert.ErrorIs(t, s.TrashPath(ctx, header), graph.ErrCantRemove)
	assert.Empty(t, attrs.purged)

	require.NoError(t, s.TrashPath(ctx, plain))
	assert.Equal(t, []graph.PathID{plain}, attrs.purged)
}
