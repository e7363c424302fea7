// Package index holds the in-memory working-copy index: the ordered entry
// set an Engine keeps for one repository, the staging/unstaging operations
// that mutate it, and the status-view queries read by callers. Persistence
// goes through plumbing/format/index; filesystem inspection is limited to
// what the index operations themselves require (stat calls for
// ApplyWorktreeChanges) — bulk working-tree enumeration and blob hashing
// belong to the sync engine one layer up.
package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/helixvcs/helix/plumbing/filemode"
	idxfmt "github.com/helixvcs/helix/plumbing/format/index"
	"github.com/helixvcs/helix/plumbing/hash"
)

func fileModeFor(info os.FileInfo) filemode.FileMode {
	return filemode.New(info.Mode())
}

// Path is the on-disk location of the index file, relative to a repo root.
const Path = ".helix/helix.idx"

// RepoMarker derives the digest stored in a freshly written index header's
// RepoMarker field, from the repository's absolute root path. The Verifier
// compares a loaded file's marker against this to detect a helix.idx copied
// or symlinked in from a different repository.
func RepoMarker(repoRoot string) hash.Digest {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		abs = repoRoot
	}
	return hash.Sum([]byte(filepath.Clean(abs)))
}

// Engine holds one repository's index in memory: the header (generation,
// timestamps, repo marker) and the entry set, kept sorted by path. All
// mutating operations take the engine's mutex under a single-writer
// model: callers hold exclusive access to the in-memory state, and
// persist() is the serialization point against the filesystem.
type Engine struct {
	repoRoot string
	idxPath  string

	mu      sync.Mutex
	header  idxfmt.Header
	entries []idxfmt.Entry
	byPath  map[string]int
}

// New returns an empty engine for repoRoot, generation 0, ready to be
// populated by a full rebuild.
func New(repoRoot string) *Engine {
	return &Engine{
		repoRoot: repoRoot,
		idxPath:  filepath.Join(repoRoot, Path),
		header: idxfmt.Header{
			Version:    idxfmt.Version,
			RepoMarker: RepoMarker(repoRoot),
		},
		byPath: make(map[string]int),
	}
}

// Generation returns the engine's current generation counter.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.header.Generation
}

// reindex rebuilds the byPath lookup after entries has been sorted or
// mutated in place. Callers must hold e.mu.
func (e *Engine) reindex() {
	e.byPath = make(map[string]int, len(e.entries))
	for i, ent := range e.entries {
		e.byPath[ent.Path] = i
	}
}

// sortEntries restores path-ascending order (invariant I3's companion:
// entries are also unique, enforced by upsertLocked never creating a
// duplicate path). Callers must hold e.mu.
func (e *Engine) sortEntries() {
	sort.Slice(e.entries, func(i, j int) bool { return e.entries[i].Path < e.entries[j].Path })
	e.reindex()
}

// Get returns a copy of the entry at path, if one exists.
func (e *Engine) Get(path string) (idxfmt.Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.byPath[path]
	if !ok {
		return idxfmt.Entry{}, false
	}
	return e.entries[i], true
}

// All returns a snapshot copy of every entry, sorted by path.
func (e *Engine) All() []idxfmt.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]idxfmt.Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// Upsert inserts ent or replaces the existing entry at the same path,
// keeping the entry set sorted. It is the primitive the sync engine uses
// once it has computed a path's new metadata and digest.
func (e *Engine) Upsert(ent idxfmt.Entry) error {
	if len(ent.Path) > idxfmt.MaxPathLen {
		return fmt.Errorf("index: path %q exceeds %d bytes (%w)", ent.Path, idxfmt.MaxPathLen, idxfmt.ErrPathTooLong)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.upsertLocked(ent)
	return nil
}

func (e *Engine) upsertLocked(ent idxfmt.Entry) {
	if i, ok := e.byPath[ent.Path]; ok {
		e.entries[i] = ent
		return
	}
	e.entries = append(e.entries, ent)
	e.sortEntries()
}

// Remove deletes the entry at path, if present. Used when a tracked path is
// confirmed gone and the caller wants it dropped outright (as opposed to
// marked DELETED, which keeps history of the fact it was tracked).
func (e *Engine) Remove(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.byPath[path]
	if !ok {
		return
	}
	e.entries = append(e.entries[:i], e.entries[i+1:]...)
	e.reindex()
}

// StageFile marks path as staged with the given content digest and
// worktree metadata: TRACKED and STAGED are set, MODIFIED is cleared.
// Staging a path already staged with the same digest is a no-op beyond
// overwriting identical metadata.
func (e *Engine) StageFile(path string, oid hash.Digest, size uint64, mtimeSec uint64, mtimeNsec uint32, fileMode uint32) error {
	if len(path) > idxfmt.MaxPathLen {
		return fmt.Errorf("index: path %q exceeds %d bytes (%w)", path, idxfmt.MaxPathLen, idxfmt.ErrPathTooLong)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var ent idxfmt.Entry
	if i, ok := e.byPath[path]; ok {
		ent = e.entries[i]
	} else {
		ent = idxfmt.Entry{Path: path}
	}

	ent.OID = oid
	ent.Size = size
	ent.MtimeSec = mtimeSec
	ent.MtimeNsec = mtimeNsec
	ent.FileMode = fileMode
	ent.Flags |= idxfmt.FlagTracked | idxfmt.FlagStaged
	ent.Flags &^= idxfmt.FlagModified | idxfmt.FlagDeleted | idxfmt.FlagUntracked

	e.upsertLocked(ent)
	return nil
}

// StageWorktreeFile reads path from the working tree, computes its digest,
// and stages it via StageFile. It returns the digest and raw content so the
// caller can write the corresponding blob through the object store without
// re-reading the file. This is the entry point CLI "stage" commands and
// StageAll use; StageFile itself stays a pure in-memory primitive for
// callers (like the sync engine) that already have a digest in hand from a
// batch hash.
func (e *Engine) StageWorktreeFile(path string) (hash.Digest, []byte, error) {
	full := filepath.Join(e.repoRoot, path)
	content, err := os.ReadFile(full)
	if err != nil {
		return hash.Digest{}, nil, fmt.Errorf("index: stage %q: %w", path, err)
	}
	info, err := os.Lstat(full)
	if err != nil {
		return hash.Digest{}, nil, fmt.Errorf("index: stage %q: %w", path, err)
	}

	oid := hash.Sum(content)
	mode := fileModeFor(info)

	if err := e.StageFile(path, oid, uint64(len(content)), uint64(info.ModTime().Unix()), uint32(info.ModTime().Nanosecond()), uint32(mode)); err != nil {
		return hash.Digest{}, nil, err
	}
	return oid, content, nil
}

// StageAll stages every path in dirty (normally the untracked/modified set
// a worktree scan already identified) and returns the blob writes the
// caller still owes the object store, keyed by digest so duplicate content
// across paths collapses to a single write.
func (e *Engine) StageAll(dirty []string) (map[hash.Digest][]byte, error) {
	blobs := make(map[hash.Digest][]byte)
	for _, path := range dirty {
		oid, content, err := e.StageWorktreeFile(path)
		if err != nil {
			return nil, err
		}
		blobs[oid] = content
	}
	return blobs, nil
}

// UnstageFile clears STAGED on path. If the path was only staged-new (never
// TRACKED), the entry is removed outright rather than left as an empty
// husk; otherwise TRACKED is preserved, restoring the pre-stage flags
// (invariant: unstage reversibility).
func (e *Engine) UnstageFile(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.byPath[path]
	if !ok {
		return
	}
	ent := e.entries[i]
	if !ent.Flags.Has(idxfmt.FlagTracked) {
		e.entries = append(e.entries[:i], e.entries[i+1:]...)
		e.reindex()
		return
	}
	ent.Flags &^= idxfmt.FlagStaged
	e.entries[i] = ent
}

// UnstageAll clears STAGED on every TRACKED entry. Staged-new entries
// (STAGED without TRACKED) are dropped instead, since clearing STAGED
// would leave them with neither flag.
func (e *Engine) UnstageAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.entries[:0]
	for _, ent := range e.entries {
		if !ent.Flags.Has(idxfmt.FlagTracked) && ent.Flags.Has(idxfmt.FlagStaged) {
			continue
		}
		ent.Flags &^= idxfmt.FlagStaged
		kept = append(kept, ent)
	}
	e.entries = kept
	e.reindex()
}

// ClearStagedFlagsAfterCommit clears STAGED on every entry while preserving
// TRACKED, called by the commit builder once a commit has been written.
func (e *Engine) ClearStagedFlagsAfterCommit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.entries {
		e.entries[i].Flags &^= idxfmt.FlagStaged
	}
}

// ApplyWorktreeChanges inspects the filesystem for each path (relative to
// repoRoot) and updates MODIFIED/DELETED/UNTRACKED bits accordingly. It
// never recomputes a blob digest — that only happens when a path is
// explicitly staged.
func (e *Engine) ApplyWorktreeChanges(paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, path := range paths {
		info, statErr := os.Lstat(filepath.Join(e.repoRoot, path))
		i, tracked := e.byPath[path]

		switch {
		case statErr != nil && os.IsNotExist(statErr):
			if tracked {
				ent := e.entries[i]
				ent.Flags |= idxfmt.FlagDeleted
				ent.Flags &^= idxfmt.FlagUntracked
				e.entries[i] = ent
			}
		case statErr != nil:
			return fmt.Errorf("index: stat %q: %w", path, statErr)
		case !tracked:
			ent := idxfmt.Entry{
				Path:      path,
				Size:      uint64(info.Size()),
				MtimeSec:  uint64(info.ModTime().Unix()),
				MtimeNsec: uint32(info.ModTime().Nanosecond()),
				Flags:     idxfmt.FlagUntracked,
			}
			e.upsertLocked(ent)
		default:
			ent := e.entries[i]
			changed := uint64(info.Size()) != ent.Size ||
				uint64(info.ModTime().Unix()) != ent.MtimeSec ||
				uint32(info.ModTime().Nanosecond()) != ent.MtimeNsec
			ent.Flags &^= idxfmt.FlagDeleted
			if changed {
				ent.Flags |= idxfmt.FlagModified
			} else {
				ent.Flags &^= idxfmt.FlagModified
			}
			e.entries[i] = ent
		}
	}
	return nil
}

// ResetEntries discards every entry while preserving the header (repo
// marker, generation, timestamps). The sync engine's full rebuild uses this
// to start from a clean slate before re-enumerating the working tree.
func (e *Engine) ResetEntries() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = nil
	e.byPath = make(map[string]int)
}

func (e *Engine) filterLocked(pred func(idxfmt.Entry) bool) []idxfmt.Entry {
	var out []idxfmt.Entry
	for _, ent := range e.entries {
		if pred(ent) {
			out = append(out, ent)
		}
	}
	return out
}

// GetStaged returns every entry currently staged (including partially
// staged and staged-new entries).
func (e *Engine) GetStaged() []idxfmt.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterLocked(func(ent idxfmt.Entry) bool { return ent.Flags.Has(idxfmt.FlagStaged) })
}

// GetUnstaged returns every tracked entry with unstaged modifications.
func (e *Engine) GetUnstaged() []idxfmt.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterLocked(func(ent idxfmt.Entry) bool {
		return ent.Flags.Has(idxfmt.FlagTracked) && ent.Flags.Has(idxfmt.FlagModified)
	})
}

// GetTracked returns every entry with TRACKED set.
func (e *Engine) GetTracked() []idxfmt.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterLocked(func(ent idxfmt.Entry) bool { return ent.Flags.Has(idxfmt.FlagTracked) })
}

// GetUntracked returns every entry with UNTRACKED set and nothing staged.
func (e *Engine) GetUntracked() []idxfmt.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterLocked(func(ent idxfmt.Entry) bool {
		return ent.Flags.Has(idxfmt.FlagUntracked) && !ent.Flags.Has(idxfmt.FlagStaged)
	})
}

// GetDeleted returns every entry with DELETED set.
func (e *Engine) GetDeleted() []idxfmt.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterLocked(func(ent idxfmt.Entry) bool { return ent.Flags.Has(idxfmt.FlagDeleted) })
}

// GetModified returns every entry with MODIFIED set.
func (e *Engine) GetModified() []idxfmt.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterLocked(func(ent idxfmt.Entry) bool { return ent.Flags.Has(idxfmt.FlagModified) })
}

// Persist increments the generation and writes the index to disk via the
// codec, atomically. On success it updates LastModified. Failure leaves the
// in-memory state and the on-disk file both at their prior values.
func (e *Engine) Persist() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.header
	next.Generation++
	next.CreatedAt = firstNonZero(e.header.CreatedAt, uint64(time.Now().Unix()))
	next.LastModified = uint64(time.Now().Unix())

	raw, err := idxfmt.Encode(next, e.entries)
	if err != nil {
		return fmt.Errorf("index: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.idxPath), 0o755); err != nil {
		return fmt.Errorf("index: mkdir: %w", err)
	}
	if err := atomicWriteFile(e.idxPath, raw); err != nil {
		return fmt.Errorf("index: persist: %w", err)
	}

	e.header = next
	return nil
}

func firstNonZero(v, fallback uint64) uint64 {
	if v != 0 {
		return v
	}
	return fallback
}
