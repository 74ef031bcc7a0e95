package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buildml/internal/graph"
)

func TestAddAccess_MergesSequence(t *testing.T) {
	tests := []struct {
		name string
		ops  []graph.OpType
		want graph.OpType
	}{
		{"single read", []graph.OpType{graph.OpRead}, graph.OpRead},
		{"read then write", []graph.OpType{graph.OpRead, graph.OpWrite}, graph.OpModified},
		{"write then read reports write", []graph.OpType{graph.OpWrite, graph.OpRead}, graph.OpWrite},
		{"write read write", []graph.OpType{graph.OpWrite, graph.OpRead, graph.OpWrite}, graph.OpWrite},
		{"read then delete", []graph.OpType{graph.OpRead, graph.OpDelete}, graph.OpDelete},
		{"delete then write", []graph.OpType{graph.OpDelete, graph.OpWrite}, graph.OpModified},
		{"modified absorbs read", []graph.OpType{graph.OpModified, graph.OpRead}, graph.OpModified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			ctx := context.Background()
			root := mustRootAction(t, s)
			a := mustAddAction(t, s, root, graphRoot, "cmd")
			file := mustAddFile(t, s, "/f")

			var got graph.OpType
			for _, op := range tt.ops {
				got = mustAccess(t, s, a, file, op)
			}
			assert.Equal(t, tt.want, got)

			state, err := s.AccessState(ctx, a, file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestAddAccess_TemporaryFileVanishes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	a := mustAddAction(t, s, root, graphRoot, "cc -pipe cat.c")
	file9 := mustAddFile(t, s, "/tmp/file9")

	assert.Equal(t, graph.OpWrite, mustAccess(t, s, a, file9, graph.OpWrite))
	assert.Equal(t, graph.OpWrite, mustAccess(t, s, a, file9, graph.OpRead))
	assert.Equal(t, graph.OpTemporary, mustAccess(t, s, a, file9, graph.OpDelete))

	_, err := s.LookupPath(ctx, "/tmp/file9")
	assert.ErrorIs(t, err, graph.ErrBadPath)

	_, err = s.AccessState(ctx, a, file9)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	files, err := s.FilesAccessed(ctx, a, graph.OpUnspecified)
	require.NoError(t, err)
	assert.Empty(t, files)

	// The directory was never part of the access and stays.
	_, err = s.LookupPath(ctx, "/tmp")
	assert.NoError(t, err)

	// The name is free again.
	again := mustAddFile(t, s, "/tmp/file9")
	assert.NotEqual(t, file9, again)
}

func TestAddAccess_TemporaryFileStillReferenced(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	writer := mustAddAction(t, s, root, graphRoot, "gen")
	reader := mustAddAction(t, s, root, graphRoot, "cat")
	file := mustAddFile(t, s, "/shared.tmp")

	mustAccess(t, s, reader, file, graph.OpRead)
	mustAccess(t, s, writer, file, graph.OpWrite)
	assert.Equal(t, graph.OpTemporary, mustAccess(t, s, writer, file, graph.OpDelete))

	got, err := s.LookupPath(ctx, "/shared.tmp")
	require.NoError(t, err)
	assert.Equal(t, file, got)

	actions, err := s.ActionsThatAccess(ctx, file, graph.OpUnspecified)
	require.NoError(t, err)
	assert.Equal(t, []graph.ActionID{reader}, actions)
}

func TestAddAccess_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	a := mustAddAction(t, s, root, graphRoot, "cmd")
	file := mustAddFile(t, s, "/f")
	gone := mustAddFile(t, s, "/gone")
	require.NoError(t, s.TrashPath(ctx, gone))

	_, err := s.AddAccess(ctx, a, file, graph.OpUnspecified)
	assert.ErrorIs(t, err, graph.ErrBadValue)

	_, err = s.AddAccess(ctx, a, file, graph.OpTemporary)
	assert.ErrorIs(t, err, graph.ErrBadValue)

	_, err = s.AddAccess(ctx, 404, file, graph.OpRead)
	assert.ErrorIs(t, err, graph.ErrBadValue)

	_, err = s.AddAccess(ctx, a, 404, graph.OpRead)
	assert.ErrorIs(t, err, graph.ErrBadPath)

	_, err = s.AddAccess(ctx, a, gone, graph.OpRead)
	assert.ErrorIs(t, err, graph.ErrBadPath)
}

func TestAddAccess_DirectoryTarget(t *testing.T) {
	s := createTestStore(t)
	root := mustRootAction(t, s)
	a := mustAddAction(t, s, root, graphRoot, "ls")
	dir := mustAddDir(t, s, "/src")

	assert.Equal(t, graph.OpRead, mustAccess(t, s, a, dir, graph.OpRead))
}

func TestRemoveAccess(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	a := mustAddAction(t, s, root, graphRoot, "cmd")
	file := mustAddFile(t, s, "/f")
	mustAccess(t, s, a, file, graph.OpRead)

	require.NoError(t, s.RemoveAccess(ctx, a, file))
	_, err := s.AccessState(ctx, a, file)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	assert.NoError(t, s.RemoveAccess(ctx, a, file))
	assert.NoError(t, s.TrashAction(ctx, a), "no accesses left to block trashing")
}

func TestAccessQueries_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	cc := mustAddAction(t, s, root, graphRoot, "gcc -c cat.c")
	src := mustAddFile(t, s, "/cat.c")
	hdr := mustAddFile(t, s, "/animals.h")
	obj := mustAddFile(t, s, "/cat.o")

	mustAccess(t, s, cc, src, graph.OpRead)
	mustAccess(t, s, cc, hdr, graph.OpRead)
	mustAccess(t, s, cc, obj, graph.OpWrite)
	mustAccess(t, s, cc, obj, graph.OpRead) // hidden wrote-then-read

	reads, err := s.FilesAccessed(ctx, cc, graph.OpRead)
	require.NoError(t, err)
	assert.Equal(t, []graph.PathID{src, hdr}, reads)

	writes, err := s.FilesAccessed(ctx, cc, graph.OpWrite)
	require.NoError(t, err)
	assert.Equal(t, []graph.PathID{obj}, writes)

	all, err := s.FilesAccessed(ctx, cc, graph.OpUnspecified)
	require.NoError(t, err)
	assert.Equal(t, []graph.PathID{src, hdr, obj}, all)

	_, err = s.FilesAccessed(ctx, cc, graph.OpTemporary)
	assert.ErrorIs(t, err, graph.ErrBadValue)

	written, err := s.PathsWithOps(ctx, graph.OpWrite, graph.OpModified)
	require.NoError(t, err)
	assert.Equal(t, []graph.PathID{obj}, written)
}

func TestAccessQueries_Batch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	var actions []graph.ActionID
	var files []graph.PathID
	// More than one IN-list chunk.
	for i := 0; i < maxInParams+20; i++ {
		a := mustAddAction(t, s, root, graphRoot, "cc")
		f, err := s.AddChild(ctx, graph.RootPath, graph.KindFile, fmt.Sprintf("f%04d", i))
		require.NoError(t, err)
		mustAccess(t, s, a, f, graph.OpRead)
		actions = append(actions, a)
		files = append(files, f)
	}

	gotFiles, err := s.FilesAccessedByAny(ctx, actions)
	require.NoError(t, err)
	assert.Len(t, gotFiles, len(files))

	gotActions, err := s.ActionsAccessingAny(ctx, files, graph.OpRead)
	require.NoError(t, err)
	assert.Equal(t, actions, gotActions)

	none, err := s.ActionsAccessingAny(ctx, files, graph.OpDelete)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAccessCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	hdr := mustAddFile(t, s, "/animals.h")
	cat := mustAddFile(t, s, "/cat.c")
	dog := mustAddFile(t, s, "/dog.c")
	dir := mustAddDir(t, s, "/d")

	a1 := mustAddAction(t, s, root, graphRoot, "cc cat")
	a2 := mustAddAction(t, s, root, graphRoot, "cc dog")
	mustAccess(t, s, a1, hdr, graph.OpRead)
	mustAccess(t, s, a2, hdr, graph.OpRead)
	mustAccess(t, s, a1, cat, graph.OpRead)
	mustAccess(t, s, a2, dog, graph.OpRead)
	mustAccess(t, s, a1, dir, graph.OpRead)
	mustAccess(t, s, a2, dir, graph.OpRead)

	counts, err := s.AccessCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []AccessCount{
		{Path: hdr, Count: 2},
		{Path: cat, Count: 1},
		{Path: dog, Count: 1},
	}, counts)
}
