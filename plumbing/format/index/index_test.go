package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixvcs/helix/plumbing/hash"
)

func sampleEntries() []Entry {
	return []Entry{
		{
			Path: "a.txt", Size: 6, MtimeSec: 1700000000, MtimeNsec: 0,
			Flags: FlagTracked | FlagStaged, OID: hash.Sum([]byte("hello\n")), FileMode: 0o100644,
		},
		{
			Path: "dir/b.txt", Size: 3, MtimeSec: 1700000001, MtimeNsec: 500,
			Flags: FlagTracked | FlagModified, OID: hash.Sum([]byte("bye")), FileMode: 0o100644,
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Version: Version, Generation: 1, CreatedAt: 100, LastModified: 100}
	entries := sampleEntries()

	raw, err := Encode(h, entries)
	require.NoError(t, err)

	decodedHeader, decodedEntries, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, h.Version, decodedHeader.Version)
	assert.Equal(t, h.Generation, decodedHeader.Generation)
	assert.Equal(t, uint32(len(entries)), decodedHeader.EntryCount)
	assert.Equal(t, entries, decodedEntries)
}

func TestEncodedSizeMatchesFixedLayout(t *testing.T) {
	h := Header{Version: Version}
	entries := sampleEntries()

	raw, err := Encode(h, entries)
	require.NoError(t, err)
	assert.Len(t, raw, HeaderSize+len(entries)*EntrySize+FooterSize)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	raw, err := Encode(Header{Version: Version}, nil)
	require.NoError(t, err)
	raw[0] = 'X'

	_, _, err = Decode(raw)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	raw, err := Encode(Header{Version: 999}, nil)
	require.NoError(t, err)

	_, _, err = Decode(raw)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	raw, err := Encode(Header{Version: Version}, sampleEntries())
	require.NoError(t, err)

	_, _, err = Decode(raw[:len(raw)-10])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeRejectsFlippedByte(t *testing.T) {
	raw, err := Encode(Header{Version: Version}, sampleEntries())
	require.NoError(t, err)

	raw[10] ^= 0xFF

	_, _, err = Decode(raw)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestEncodeRejectsPathTooLong(t *testing.T) {
	_, err := Encode(Header{Version: Version}, []Entry{
		{Path: strings.Repeat("x", MaxPathLen+1)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathTooLong)
}

func TestDecodeRejectsUnknownFlagBits(t *testing.T) {
	raw, err := Encode(Header{Version: Version}, []Entry{
		{Path: "a", Flags: EntryFlags(1 << 31)},
	})
	require.NoError(t, err)

	_, _, err = Decode(raw)
	assert.ErrorIs(t, err, ErrUnknownFlagBits)
}

func TestStatusDerivation(t *testing.T) {
	cases := []struct {
		flags EntryFlags
		want  Status
	}{
		{FlagTracked | FlagStaged, StatusStaged},
		{FlagTracked | FlagModified, StatusUnstaged},
		{FlagTracked, StatusClean},
		{FlagTracked | FlagStaged | FlagModified, StatusPartiallyStaged},
		{0, StatusUntracked},
		{FlagStaged, StatusStagedNew},
		{FlagTracked | FlagConflict, StatusConflicted},
	}
	for _, c := range cases {
		e := Entry{Flags: c.flags}
		assert.Equal(t, c.want, e.Status(), "flags=%v", c.flags)
	}
}

func TestEmptyIndexRoundTrip(t *testing.T) {
	raw, err := Encode(Header{Version: Version}, nil)
	require.NoError(t, err)

	h, entries, err := Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, uint32(0), h.EntryCount)
}
