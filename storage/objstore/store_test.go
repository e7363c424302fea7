package objstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	return s
}

func TestPutEncodedAcceptsOnDiskFormFromAnotherStore(t *testing.T) {
	src := newTestStore(t)
	dst := newTestStore(t)

	digest, err := src.PutRaw(object.BlobKind, []byte("relayed content"))
	require.NoError(t, err)
	encoded, err := src.GetEncoded(object.BlobKind, digest)
	require.NoError(t, err)

	require.NoError(t, dst.PutEncoded(object.BlobKind, digest, encoded))
	raw, err := dst.GetRaw(object.BlobKind, digest)
	require.NoError(t, err)
	assert.Equal(t, "relayed content", string(raw))
}

func TestPutEncodedRejectsTamperedPayload(t *testing.T) {
	s := newTestStore(t)
	digest := hash.Sum([]byte("hello helix"))

	err := s.PutEncoded(object.TreeKind, digest, []byte("not the right bytes"))
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestPutRawGetRawRoundTripBlob(t *testing.T) {
	s := newTestStore(t)

	content := []byte("hello helix")
	digest, err := s.PutRaw(object.BlobKind, content)
	require.NoError(t, err)

	assert.True(t, s.Has(object.BlobKind, digest))

	got, err := s.GetRaw(object.BlobKind, digest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestPutRawGetRawRoundTripTreeAndCommitAreUncompressed(t *testing.T) {
	s := newTestStore(t)

	for _, kind := range []object.Kind{object.TreeKind, object.CommitKind} {
		content := []byte("some raw object bytes for " + kind.String())
		digest, err := s.PutRaw(kind, content)
		require.NoError(t, err)

		encoded, err := s.GetEncoded(kind, digest)
		require.NoError(t, err)
		assert.Equal(t, content, encoded, "tree/commit objects must be stored raw, not compressed")
	}
}

func TestPutRawDeduplicatesIdenticalContent(t *testing.T) {
	s := newTestStore(t)

	content := []byte("duplicate content")
	d1, err := s.PutRaw(object.BlobKind, content)
	require.NoError(t, err)
	d2, err := s.PutRaw(object.BlobKind, content)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)

	digests, err := s.List(object.BlobKind)
	require.NoError(t, err)
	assert.Len(t, digests, 1)
}

func TestPutWithDigestRejectsMismatch(t *testing.T) {
	s := newTestStore(t)

	wrong := hash.Sum([]byte("not the content"))
	err := s.PutWithDigest(object.BlobKind, wrong, []byte("actual content"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestGetRawMissingObject(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRaw(object.BlobKind, hash.Sum([]byte("never written")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRawDetectsCorruption(t *testing.T) {
	s := newTestStore(t)

	digest, err := s.PutRaw(object.TreeKind, []byte("tree bytes"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.path(object.TreeKind, digest), []byte("tampered"), 0o644))

	_, err = s.GetRaw(object.TreeKind, digest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestListFiltersByKind(t *testing.T) {
	s := newTestStore(t)

	blobDigest, err := s.PutRaw(object.BlobKind, []byte("a blob"))
	require.NoError(t, err)
	_, err = s.PutRaw(object.TreeKind, []byte("a tree"))
	require.NoError(t, err)

	blobs, err := s.List(object.BlobKind)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, blobDigest, blobs[0])
}

func TestListOnEmptyStoreReturnsEmpty(t *testing.T) {
	s := newTestStore(t)

	digests, err := s.List(object.CommitKind)
	require.NoError(t, err)
	assert.Empty(t, digests)
}

func TestHasReportsFalseForAbsentObject(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Has(object.BlobKind, hash.Sum([]byte("absent"))))
}

func TestPutRawEmptyContent(t *testing.T) {
	s := newTestStore(t)

	digest, err := s.PutRaw(object.BlobKind, []byte{})
	require.NoError(t, err)

	got, err := s.GetRaw(object.BlobKind, digest)
	require.NoError(t, err)
	assert.Empty(t, got)
}
