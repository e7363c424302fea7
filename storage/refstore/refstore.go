// Package refstore implements Helix's ref storage: named pointers (branch
// heads, remote-tracking refs) to commit digests, held as plain files
// under .helix/refs/, with a compare-and-set update primitive the sync
// protocol and commit builder use to avoid clobbering concurrent writers.
package refstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/helixvcs/helix/plumbing/hash"
)

// ErrNotFastForward is a sentinel for an update whose new value is not a
// descendant of expected. refstore has no notion of commit history, so CAS
// never produces this error, and no caller in this module performs an
// ancestry check that would; the push handler maps it, like an
// UnexpectedCurrentError, to the not-fast-forward error code.
var ErrNotFastForward = errors.New("refstore: update is not a fast-forward")

// ErrUnexpectedCurrent is the sentinel wrapped into UnexpectedCurrentError,
// for errors.Is checks that don't need the actual current value.
var ErrUnexpectedCurrent = errors.New("refstore: ref is not at the expected value")

// UnexpectedCurrentError reports the actual value CAS found in place of the
// caller's expectation, letting the caller decide whether to retry or
// surface a conflict.
type UnexpectedCurrentError struct {
	Name    string
	Current hash.Digest
}

func (e *UnexpectedCurrentError) Error() string {
	return fmt.Sprintf("refstore: ref %q is at %s, not the expected value", e.Name, e.Current)
}

func (e *UnexpectedCurrentError) Unwrap() error { return ErrUnexpectedCurrent }

// Store is a filesystem-backed ref store rooted at a repository's
// .helix/refs directory. A single mutex serializes writes so a read-modify-
// write CAS sequence cannot race with itself within one process; cross-
// process safety relies on the atomic rename used by every write.
type Store struct {
	root string
	mu   sync.Mutex
}

// Open returns a Store rooted at <repoRoot>/.helix/refs, creating the
// directory if needed.
func Open(repoRoot string) (*Store, error) {
	root := filepath.Join(repoRoot, ".helix", "refs")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("refstore: create refs dir: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Get returns the digest a ref currently points at, and whether the ref
// exists at all.
func (s *Store) Get(name string) (hash.Digest, bool, error) {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return hash.Digest{}, false, nil
		}
		return hash.Digest{}, false, fmt.Errorf("refstore: read ref %q: %w", name, err)
	}

	digest, err := hash.ParseHex(strings.TrimSpace(string(raw)))
	if err != nil {
		return hash.Digest{}, false, fmt.Errorf("refstore: ref %q: %w", name, err)
	}
	return digest, true, nil
}

// Set unconditionally points name at new, creating it if absent. Unlike
// CAS it does not compare the current value first.
func (s *Store) Set(name string, new hash.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(name, new)
}

// CAS atomically updates name from expected to new. If the ref does not yet
// exist, pass hash.Zero as expected. If the ref's current value does not
// equal expected, the update is rejected and the error identifies the
// actual current value so the caller can decide how to proceed. The sync
// protocol's push handler relies on this value comparison alone; it does
// not check ancestry before calling CAS.
func (s *Store) CAS(name string, expected, new hash.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists, err := s.Get(name)
	if err != nil {
		return err
	}

	if exists {
		if current != expected {
			return &UnexpectedCurrentError{Name: name, Current: current}
		}
	} else if !expected.IsZero() {
		return &UnexpectedCurrentError{Name: name, Current: hash.Zero}
	}

	return s.write(name, new)
}

func (s *Store) write(name string, digest hash.Digest) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("refstore: mkdir for ref %q: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("refstore: create temp ref file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(digest.String() + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("refstore: write ref %q: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("refstore: sync ref %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("refstore: close ref %q: %w", name, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("refstore: rename ref %q into place: %w", name, err)
	}
	return nil
}

// Delete removes a ref entirely. Absent refs are not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("refstore: delete ref %q: %w", name, err)
	}
	return nil
}

// List returns the names of every ref under prefix (e.g. "heads/" or
// "remotes/origin/"), relative to the refs root.
func (s *Store) List(prefix string) ([]string, error) {
	base := filepath.Join(s.root, filepath.FromSlash(prefix))
	if _, err := os.Stat(base); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("refstore: list refs under %q: %w", prefix, err)
	}

	var names []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refstore: list refs under %q: %w", prefix, err)
	}
	return names, nil
}
