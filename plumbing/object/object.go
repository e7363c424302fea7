// Package object defines the three content-addressed object kinds Helix
// stores — blobs, trees and commits — and their bit-exact binary encodings.
package object

// Kind identifies which of the three object kinds a digest names. It also
// selects the on-disk encoding rule used by the object store: blobs are
// zstd-compressed, trees and commits are stored as raw bytes.
type Kind uint8

const (
	BlobKind Kind = iota
	TreeKind
	CommitKind
)

func (k Kind) String() string {
	switch k {
	case BlobKind:
		return "blob"
	case TreeKind:
		return "tree"
	case CommitKind:
		return "commit"
	default:
		return "unknown"
	}
}

// Subdir returns the object store subdirectory used for this kind, e.g.
// "blobs" (under .helix/objects).
func (k Kind) Subdir() string {
	switch k {
	case BlobKind:
		return "blobs"
	case TreeKind:
		return "trees"
	case CommitKind:
		return "commits"
	default:
		return "unknown"
	}
}
