package objstore

import "errors"

// Sentinel errors for the object store. Callers compare with errors.Is;
// wrapped context (kind, digest) is layered on with fmt.Errorf.
var (
	// ErrNotFound is returned by GetRaw/GetEncoded when no object exists
	// under the requested digest.
	ErrNotFound = errors.New("objstore: object not found")

	// ErrHashMismatch is returned by PutWithDigest when the caller's
	// claimed digest does not match the hash of the bytes supplied.
	ErrHashMismatch = errors.New("objstore: digest does not match content")

	// ErrCorrupt is returned by GetRaw when the bytes read from
	// disk do not hash to the digest named by the path they were read
	// from.
	ErrCorrupt = errors.New("objstore: on-disk object failed integrity check")
)
