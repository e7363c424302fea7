package hash

import (
	"encoding/hex"
	"fmt"
)

// ParseHex decodes a 64-character lowercase hex string into a Digest.
func ParseHex(in string) (Digest, error) {
	if len(in) != HexSize {
		return Digest{}, fmt.Errorf("hash: invalid hex length %d, want %d", len(in), HexSize)
	}

	b, err := hex.DecodeString(in)
	if err != nil {
		return Digest{}, fmt.Errorf("hash: invalid hex string: %w", err)
	}

	var d Digest
	copy(d[:], b)
	return d, nil
}

// MustParseHex is like ParseHex but panics on error. Intended for tests and
// literals, not for decoding untrusted input.
func MustParseHex(in string) Digest {
	d, err := ParseHex(in)
	if err != nil {
		panic(err)
	}
	return d
}

// FromBytes copies a raw 32-byte slice into a Digest.
func FromBytes(b []byte) (Digest, error) {
	if len(b) != Size {
		return Digest{}, fmt.Errorf("hash: invalid byte length %d, want %d", len(b), Size)
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}
