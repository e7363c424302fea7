// Package objstore implements Helix's content-addressed object store: blobs,
// trees and commits written under .helix/objects/{blobs,trees,commits}/<hex
// digest>, one file per object, named by the BLAKE3 digest of its raw bytes.
//
// The store's API always deals in raw (uncompressed) bytes; blobs alone are
// zstd-compressed on disk, trees and commits are stored byte-for-byte. This
// mirrors the reference storage layer, which compresses only the blob path
// and leaves tree/commit objects raw.
package objstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
)

// zstdLevel is fixed at 3: fast enough for interactive staging, and the
// level the reference store uses for every blob.
const zstdLevel = zstd.SpeedDefault

// Store is a filesystem-backed object store rooted at a repository's
// .helix/objects directory.
type Store struct {
	root string // path to .helix/objects
}

// Open returns a Store rooted at <repoRoot>/.helix/objects, creating the
// three kind subdirectories if they do not already exist.
func Open(repoRoot string) (*Store, error) {
	root := filepath.Join(repoRoot, ".helix", "objects")
	for _, kind := range []object.Kind{object.BlobKind, object.TreeKind, object.CommitKind} {
		if err := os.MkdirAll(filepath.Join(root, kind.Subdir()), 0o755); err != nil {
			return nil, fmt.Errorf("objstore: create %s dir: %w", kind, err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) path(kind object.Kind, digest hash.Digest) string {
	return filepath.Join(s.root, kind.Subdir(), digest.String())
}

// Has reports whether an object of the given kind and digest is present.
func (s *Store) Has(kind object.Kind, digest hash.Digest) bool {
	_, err := os.Stat(s.path(kind, digest))
	return err == nil
}

// PutRaw hashes raw, stores it under the resulting digest (encoding it per
// kind) and returns the digest. Writing an object that already exists is a
// no-op beyond the hash computation.
func (s *Store) PutRaw(kind object.Kind, raw []byte) (hash.Digest, error) {
	digest := hash.Sum(raw)
	if err := s.PutWithDigest(kind, digest, raw); err != nil {
		return hash.Digest{}, err
	}
	return digest, nil
}

// PutWithDigest stores raw under a caller-claimed digest, after verifying
// that digest actually matches hash.Sum(raw). PutRaw and the sync engine's
// blob writes use it, having the digest in hand already; the claimed digest
// is still checked rather than trusted.
func (s *Store) PutWithDigest(kind object.Kind, digest hash.Digest, raw []byte) error {
	computed := hash.Sum(raw)
	if computed != digest {
		return fmt.Errorf("%w: kind=%s claimed=%s computed=%s", ErrHashMismatch, kind, digest, computed)
	}

	path := s.path(kind, digest)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	encoded, err := encode(kind, raw)
	if err != nil {
		return fmt.Errorf("objstore: encode %s %s: %w", kind, digest, err)
	}

	if err := atomicWrite(path, encoded); err != nil {
		return fmt.Errorf("objstore: write %s %s: %w", kind, digest, err)
	}
	return nil
}

// PutEncoded stores encoded — already in its on-disk form (e.g.
// zstd-compressed for a blob) — after decoding it and verifying the
// decoded bytes hash to digest. This is what the wire protocol's receiver
// calls: PushObject/PullObject payloads carry the on-disk form directly
// (sent via GetEncoded) so the sender never has to decompress-then-
// recompress, but the digest is always over raw content, so the receiver
// must decode before it can verify.
func (s *Store) PutEncoded(kind object.Kind, digest hash.Digest, encoded []byte) error {
	raw, err := decode(kind, encoded)
	if err != nil {
		return fmt.Errorf("objstore: decode %s %s: %w", kind, digest, err)
	}
	if computed := hash.Sum(raw); computed != digest {
		return fmt.Errorf("%w: kind=%s claimed=%s computed=%s", ErrHashMismatch, kind, digest, computed)
	}

	path := s.path(kind, digest)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := atomicWrite(path, encoded); err != nil {
		return fmt.Errorf("objstore: write %s %s: %w", kind, digest, err)
	}
	return nil
}

// GetRaw reads and decodes the object named by kind and digest, verifying
// its content against digest before returning.
func (s *Store) GetRaw(kind object.Kind, digest hash.Digest) ([]byte, error) {
	encoded, err := os.ReadFile(s.path(kind, digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: kind=%s digest=%s", ErrNotFound, kind, digest)
		}
		return nil, fmt.Errorf("objstore: read %s %s: %w", kind, digest, err)
	}

	raw, err := decode(kind, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: kind=%s digest=%s: %v", ErrCorrupt, kind, digest, err)
	}

	if computed := hash.Sum(raw); computed != digest {
		return nil, fmt.Errorf("%w: kind=%s expected=%s got=%s", ErrCorrupt, kind, digest, computed)
	}

	return raw, nil
}

// GetEncoded reads the on-disk bytes for an object without decoding or
// integrity-checking them. Used by the sync protocol when relaying objects
// to a peer that will verify them on its own end.
func (s *Store) GetEncoded(kind object.Kind, digest hash.Digest) ([]byte, error) {
	encoded, err := os.ReadFile(s.path(kind, digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: kind=%s digest=%s", ErrNotFound, kind, digest)
		}
		return nil, fmt.Errorf("objstore: read %s %s: %w", kind, digest, err)
	}
	return encoded, nil
}

// List returns every digest currently stored under kind. Entries that are
// not well-formed 64-character hex names (stray temp files, dotfiles) are
// silently skipped, matching the reference store's directory scan.
func (s *Store) List(kind object.Kind) ([]hash.Digest, error) {
	dir := filepath.Join(s.root, kind.Subdir())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("objstore: list %s: %w", kind, err)
	}

	out := make([]hash.Digest, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || len(entry.Name()) != hash.HexSize {
			continue
		}
		digest, err := hash.ParseHex(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, digest)
	}
	return out, nil
}

func encode(kind object.Kind, raw []byte) ([]byte, error) {
	if kind != object.BlobKind {
		return raw, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decode(kind object.Kind, encoded []byte) ([]byte, error) {
	if kind != object.BlobKind {
		return encoded, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(encoded, nil)
}
