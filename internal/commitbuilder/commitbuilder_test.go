package commitbuilder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixvcs/helix/internal/index"
	idxfmt "github.com/helixvcs/helix/plumbing/format/index"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
	"github.com/helixvcs/helix/storage/refstore"
)

func newRepo(t *testing.T) (string, *objstore.Store, *refstore.Store, *index.Engine) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".helix"), 0o755))

	objs, err := objstore.Open(root)
	require.NoError(t, err)
	refs, err := refstore.Open(root)
	require.NoError(t, err)
	idx := index.New(root)
	return root, objs, refs, idx
}

func sig(name string) object.Signature {
	return object.Signature{Name: name, Email: name + "@example.com", When: time.Unix(1700000000, 0)}
}

func TestCommitWritesTreeCommitAndRef(t *testing.T) {
	root, objs, refs, idx := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644))
	_, _, err := idx.StageWorktreeFile("a.txt")
	require.NoError(t, err)

	b := New(objs, refs, idx)
	digest, err := b.Commit(Request{
		Ref:       "heads/main",
		Author:    sig("T"),
		Committer: sig("T"),
		Message:   "init",
	})
	require.NoError(t, err)

	raw, err := objs.GetRaw(object.CommitKind, digest)
	require.NoError(t, err)
	commit, err := object.DecodeCommit(raw)
	require.NoError(t, err)
	assert.Equal(t, "init", commit.Message)
	assert.Empty(t, commit.Parents)

	head, ok, err := refs.Get("heads/main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, digest, head)

	ent, ok := idx.Get("a.txt")
	require.True(t, ok)
	assert.False(t, ent.Flags.Has(idxfmt.FlagStaged))
}

func TestSecondCommitChainsParent(t *testing.T) {
	root, objs, refs, idx := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644))
	_, _, err := idx.StageWorktreeFile("a.txt")
	require.NoError(t, err)

	b := New(objs, refs, idx)
	c1, err := b.Commit(Request{Ref: "heads/main", Author: sig("T"), Committer: sig("T"), Message: "init"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello again\n"), 0o644))
	_, _, err = idx.StageWorktreeFile("a.txt")
	require.NoError(t, err)

	c2, err := b.Commit(Request{Ref: "heads/main", Parents: []hash.Digest{c1}, Author: sig("T"), Committer: sig("T"), Message: "second"})
	require.NoError(t, err)

	raw, err := objs.GetRaw(object.CommitKind, c2)
	require.NoError(t, err)
	commit, err := object.DecodeCommit(raw)
	require.NoError(t, err)
	require.Len(t, commit.Parents, 1)
	assert.Equal(t, c1, commit.Parents[0])

	head, _, err := refs.Get("heads/main")
	require.NoError(t, err)
	assert.Equal(t, c2, head)
}

func TestCommitRejectsStaleParentCAS(t *testing.T) {
	root, objs, refs, idx := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644))
	_, _, err := idx.StageWorktreeFile("a.txt")
	require.NoError(t, err)

	b := New(objs, refs, idx)
	_, err = b.Commit(Request{Ref: "heads/main", Author: sig("T"), Committer: sig("T"), Message: "init"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("other\n"), 0o644))
	_, _, err = idx.StageWorktreeFile("b.txt")
	require.NoError(t, err)

	_, err = b.Commit(Request{Ref: "heads/main", Parents: nil, Author: sig("T"), Committer: sig("T"), Message: "conflict"})
	assert.Error(t, err)
}
