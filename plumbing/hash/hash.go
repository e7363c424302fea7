// Package hash computes and represents the content digest used to address
// every object in a Helix repository.
package hash

import (
	"encoding/hex"
	"io"

	"lukechampine.com/blake3"
)

// Size is the length in bytes of a Digest.
const Size = 32

// HexSize is the length of a Digest's hexadecimal string form.
const HexSize = Size * 2

// Digest is a 32-byte BLAKE3 content hash. It identifies an Object by the
// raw (uncompressed, undecorated) bytes it was computed over.
type Digest [Size]byte

// Zero is the distinguished digest representing "absent" (e.g. the parent
// of a root commit, or an unset ref).
var Zero = Digest{}

// IsZero reports whether d is the all-zero digest.
func (d Digest) IsZero() bool {
	return d == Zero
}

// String returns the lowercase hexadecimal form of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the raw 32 bytes of d.
func (d Digest) Bytes() []byte {
	return d[:]
}

// Sum computes the digest of data.
func Sum(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// A Writer accumulates bytes and produces a Digest on Sum, mirroring
// hash.Hash but returning our fixed-size type instead of []byte.
type Writer struct {
	h *blake3.Hasher
}

// NewWriter returns a streaming hasher suitable for chunked input (the
// caller should feed it in chunks of at least 64KiB for large files).
func NewWriter() *Writer {
	return &Writer{h: blake3.New(Size, nil)}
}

func (w *Writer) Write(p []byte) (int, error) { return w.h.Write(p) }

// Sum finalizes the hash and returns the resulting Digest. The Writer
// remains usable for further writes per the underlying hash.Hash contract,
// but callers should treat a Helix digest computation as one-shot.
func (w *Writer) Sum() Digest {
	var d Digest
	copy(d[:], w.h.Sum(nil))
	return d
}

// SumReader streams r through the digest in fixed-size chunks, avoiding
// loading the entire input into memory. Intended for large files (the
// reference implementation uses this above roughly 10MB).
func SumReader(r io.Reader) (Digest, error) {
	w := NewWriter()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(w, r, buf); err != nil {
		return Digest{}, err
	}
	return w.Sum(), nil
}
