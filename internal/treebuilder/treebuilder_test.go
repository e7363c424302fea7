package treebuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idxfmt "github.com/helixvcs/helix/plumbing/format/index"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
)

func newStore(t *testing.T) *objstore.Store {
	t.Helper()
	s, err := objstore.Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func trackedEntry(path string, content string) idxfmt.Entry {
	return idxfmt.Entry{
		Path:     path,
		Size:     uint64(len(content)),
		Flags:    idxfmt.FlagTracked,
		OID:      hash.Sum([]byte(content)),
		FileMode: 0o100644,
	}
}

func TestBuildSingleFileAtRoot(t *testing.T) {
	objs := newStore(t)
	root, err := Build(objs, []idxfmt.Entry{trackedEntry("a.txt", "hello")})
	require.NoError(t, err)

	raw, err := objs.GetRaw(object.TreeKind, root)
	require.NoError(t, err)
	tree, err := object.DecodeTree(raw)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 1)
	assert.Equal(t, "a.txt", tree.Entries[0].Name)
}

func TestBuildNestedDirectories(t *testing.T) {
	objs := newStore(t)
	entries := []idxfmt.Entry{
		trackedEntry("a.txt", "one"),
		trackedEntry("sub/b.txt", "two"),
		trackedEntry("sub/deep/c.txt", "three"),
	}
	root, err := Build(objs, entries)
	require.NoError(t, err)

	raw, err := objs.GetRaw(object.TreeKind, root)
	require.NoError(t, err)
	tree, err := object.DecodeTree(raw)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 2)

	var sub *object.TreeEntry
	for i := range tree.Entries {
		if tree.Entries[i].Name == "sub" {
			sub = &tree.Entries[i]
		}
	}
	require.NotNil(t, sub)
	assert.True(t, sub.Kind.IsDir())

	subRaw, err := objs.GetRaw(object.TreeKind, sub.Digest)
	require.NoError(t, err)
	subTree, err := object.DecodeTree(subRaw)
	require.NoError(t, err)
	assert.Len(t, subTree.Entries, 2) // b.txt and deep/
}

func TestBuildIsDeterministic(t *testing.T) {
	objs := newStore(t)
	entries := []idxfmt.Entry{
		trackedEntry("b.txt", "two"),
		trackedEntry("a.txt", "one"),
	}
	r1, err := Build(objs, entries)
	require.NoError(t, err)
	r2, err := Build(objs, entries)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestBuildExcludesDeletedAndUntrackedEntries(t *testing.T) {
	objs := newStore(t)
	tracked := trackedEntry("a.txt", "one")
	deleted := trackedEntry("b.txt", "two")
	deleted.Flags |= idxfmt.FlagDeleted
	untracked := idxfmt.Entry{Path: "c.txt", Flags: idxfmt.FlagUntracked}

	root, err := Build(objs, []idxfmt.Entry{tracked, deleted, untracked})
	require.NoError(t, err)

	raw, err := objs.GetRaw(object.TreeKind, root)
	require.NoError(t, err)
	tree, err := object.DecodeTree(raw)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 1)
	assert.Equal(t, "a.txt", tree.Entries[0].Name)
}
