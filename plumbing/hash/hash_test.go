package hash

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumDeterministic(t *testing.T) {
	data := []byte("hello world")
	assert.Equal(t, Sum(data), Sum(data))
}

func TestSumDistinctInputs(t *testing.T) {
	assert.NotEqual(t, Sum([]byte("hello")), Sum([]byte("world")))
}

func TestSumEmpty(t *testing.T) {
	d := Sum(nil)
	assert.False(t, d.IsZero(), "empty content still hashes to a non-zero digest")
}

func TestZeroIsDistinguished(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, Sum([]byte("x")).IsZero())
}

func TestHexRoundTrip(t *testing.T) {
	d := Sum([]byte("roundtrip"))
	hexStr := d.String()
	assert.Len(t, hexStr, HexSize)

	parsed, err := ParseHex(hexStr)
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestParseHexRejectsBadLength(t *testing.T) {
	_, err := ParseHex("deadbeef")
	assert.Error(t, err)
}

func TestParseHexRejectsBadChars(t *testing.T) {
	_, err := ParseHex(string(bytes.Repeat([]byte("z"), HexSize)))
	assert.Error(t, err)
}

func TestSumReaderMatchesSum(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 200*1024)

	streamed, err := SumReader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, Sum(data), streamed)
}

func TestSumFilesParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()

	var paths []string
	var want []Digest
	for i := 0; i < 50; i++ {
		p := filepath.Join(dir, filepath.Base(t.Name())+string(rune('a'+i%26))+string(rune('a'+i/26))+".txt")
		content := []byte{byte(i), byte(i * 7), byte(i * 13)}
		require.NoError(t, os.WriteFile(p, content, 0o644))
		paths = append(paths, p)
		want = append(want, Sum(content))
	}

	got, err := SumFiles(paths)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i], "digest for %s", paths[i])
	}
}

func TestSortOrdersDigests(t *testing.T) {
	a := Sum([]byte("a"))
	b := Sum([]byte("b"))
	c := Sum([]byte("c"))

	digests := []Digest{c, a, b}
	Sort(digests)

	for i := 1; i < len(digests); i++ {
		assert.LessOrEqual(t, string(digests[i-1][:]), string(digests[i][:]))
	}
}
