package refstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixvcs/helix/plumbing/hash"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestGetOnAbsentRef(t *testing.T) {
	s := newTestStore(t)

	_, exists, err := s.Get("heads/main")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSetThenGet(t *testing.T) {
	s := newTestStore(t)

	digest := hash.Sum([]byte("commit 1"))
	require.NoError(t, s.Set("heads/main", digest))

	got, exists, err := s.Get("heads/main")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, digest, got)
}

func TestCASCreatesRefFromZero(t *testing.T) {
	s := newTestStore(t)

	digest := hash.Sum([]byte("first commit"))
	require.NoError(t, s.CAS("heads/main", hash.Zero, digest))

	got, exists, err := s.Get("heads/main")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, digest, got)
}

func TestCASAdvancesRef(t *testing.T) {
	s := newTestStore(t)

	first := hash.Sum([]byte("c1"))
	second := hash.Sum([]byte("c2"))

	require.NoError(t, s.CAS("heads/main", hash.Zero, first))
	require.NoError(t, s.CAS("heads/main", first, second))

	got, _, err := s.Get("heads/main")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestCASRejectsStaleExpected(t *testing.T) {
	s := newTestStore(t)

	first := hash.Sum([]byte("c1"))
	stale := hash.Sum([]byte("stale"))
	second := hash.Sum([]byte("c2"))

	require.NoError(t, s.CAS("heads/main", hash.Zero, first))

	err := s.CAS("heads/main", stale, second)
	require.Error(t, err)

	var uce *UnexpectedCurrentError
	require.True(t, errors.As(err, &uce))
	assert.Equal(t, first, uce.Current)
	assert.ErrorIs(t, err, ErrUnexpectedCurrent)

	got, _, getErr := s.Get("heads/main")
	require.NoError(t, getErr)
	assert.Equal(t, first, got, "rejected CAS must not mutate the ref")
}

func TestCASRejectsCreateWhenRefAlreadyExists(t *testing.T) {
	s := newTestStore(t)

	first := hash.Sum([]byte("c1"))
	require.NoError(t, s.CAS("heads/main", hash.Zero, first))

	err := s.CAS("heads/main", hash.Zero, hash.Sum([]byte("c2")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedCurrent)
}

func TestDeleteAbsentRefIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Delete("heads/does-not-exist"))
}

func TestDeleteRemovesRef(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("heads/main", hash.Sum([]byte("c1"))))
	require.NoError(t, s.Delete("heads/main"))

	_, exists, err := s.Get("heads/main")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListReturnsRefsUnderPrefix(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("heads/main", hash.Sum([]byte("c1"))))
	require.NoError(t, s.Set("heads/feature", hash.Sum([]byte("c2"))))
	require.NoError(t, s.Set("remotes/origin/main", hash.Sum([]byte("c3"))))

	heads, err := s.List("heads")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"heads/main", "heads/feature"}, heads)
}

func TestListOnMissingPrefixReturnsEmpty(t *testing.T) {
	s := newTestStore(t)

	names, err := s.List("remotes/nothing-here")
	require.NoError(t, err)
	assert.Empty(t, names)
}
