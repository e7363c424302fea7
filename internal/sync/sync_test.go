package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixvcs/helix/internal/ignore"
	"github.com/helixvcs/helix/internal/index"
	idxfmt "github.com/helixvcs/helix/plumbing/format/index"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
)

func newTestEngine(t *testing.T) (root string, eng *Engine, idx *index.Engine, objs *objstore.Store) {
	t.Helper()
	root = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".helix"), 0o755))

	objs, err := objstore.Open(root)
	require.NoError(t, err)
	oracle, err := ignore.New(root, "")
	require.NoError(t, err)
	idx = index.New(root)
	eng = New(root, objs, oracle, idx)
	return root, eng, idx, objs
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestFullRebuildStagesEveryDiscoveredFile(t *testing.T) {
	root, eng, idx, objs := newTestEngine(t)
	write(t, root, "a.txt", "hello\n")
	write(t, root, "sub/b.txt", "world\n")

	require.NoError(t, eng.FullRebuild())

	a, ok := idx.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, idxfmt.StatusStaged, a.Status())
	assert.True(t, objs.Has(object.BlobKind, a.OID))

	b, ok := idx.Get("sub/b.txt")
	require.True(t, ok)
	assert.Equal(t, hash.Sum([]byte("world\n")), b.OID)

	assert.Equal(t, uint64(1), idx.Generation())
}

func TestFullRebuildRespectsIgnoreOracle(t *testing.T) {
	root, eng, idx, _ := newTestEngine(t)
	write(t, root, "keep.txt", "keep")
	write(t, root, "build.log", "noise")
	require.NoError(t, os.WriteFile(filepath.Join(root, ".helixignore"), []byte("*.log\n"), 0o644))

	oracle, err := ignore.New(root, "")
	require.NoError(t, err)
	eng = New(root, eng.objects, oracle, idx)

	require.NoError(t, eng.FullRebuild())

	_, ok := idx.Get("keep.txt")
	assert.True(t, ok)
	_, ok = idx.Get("build.log")
	assert.False(t, ok)
}

func TestFullRebuildDeduplicatesIdenticalContent(t *testing.T) {
	root, eng, idx, objs := newTestEngine(t)
	write(t, root, "a.txt", "same")
	write(t, root, "b.txt", "same")

	require.NoError(t, eng.FullRebuild())

	a, _ := idx.Get("a.txt")
	b, _ := idx.Get("b.txt")
	assert.Equal(t, a.OID, b.OID)
	assert.True(t, objs.Has(object.BlobKind, a.OID))
}

func TestIncrementalRefreshDetectsNewModifiedAndDeleted(t *testing.T) {
	root, eng, idx, _ := newTestEngine(t)
	write(t, root, "a.txt", "hello\n")
	write(t, root, "b.txt", "bye\n")
	require.NoError(t, eng.FullRebuild())

	write(t, root, "a.txt", "hello world\n")
	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	write(t, root, "c.txt", "new\n")

	require.NoError(t, eng.IncrementalRefresh([]string{"a.txt", "b.txt", "c.txt"}, true))

	a, _ := idx.Get("a.txt")
	assert.Equal(t, hash.Sum([]byte("hello world\n")), a.OID)

	_, bOK := idx.Get("b.txt")
	if bOK {
		b, _ := idx.Get("b.txt")
		assert.True(t, b.Flags.Has(idxfmt.FlagDeleted))
	}

	c, ok := idx.Get("c.txt")
	require.True(t, ok)
	assert.Equal(t, hash.Sum([]byte("new\n")), c.OID)
}

func TestFullThenIncrementalConverge(t *testing.T) {
	rootFull, engFull, idxFull, _ := newTestEngine(t)
	write(t, rootFull, "a.txt", "one\n")
	write(t, rootFull, "b.txt", "two\n")
	require.NoError(t, engFull.FullRebuild())

	rootInc, engInc, idxInc, _ := newTestEngine(t)
	write(t, rootInc, "a.txt", "one\n")
	require.NoError(t, engInc.FullRebuild())
	write(t, rootInc, "b.txt", "two\n")
	require.NoError(t, engInc.IncrementalRefresh([]string{"b.txt"}, true))

	full := idxFull.All()
	inc := idxInc.All()
	require.Len(t, full, len(inc))
	for i := range full {
		assert.Equal(t, full[i].Path, inc[i].Path)
		assert.Equal(t, full[i].OID, inc[i].OID)
		assert.Equal(t, full[i].Flags, inc[i].Flags)
	}
}
