// Package sync reconciles the in-memory index with the working tree: a
// full rebuild that re-enumerates every path from scratch, and an
// incremental refresh driven by a set of changed paths from a filesystem
// watcher. Both converge to the same entry set for the same observable
// working-tree state.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/helixvcs/helix/internal/ignore"
	"github.com/helixvcs/helix/internal/index"
	"github.com/helixvcs/helix/plumbing/filemode"
	idxfmt "github.com/helixvcs/helix/plumbing/format/index"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
)

// Engine reconciles one repository's index against its working tree.
type Engine struct {
	repoRoot string
	objects  *objstore.Store
	oracle   *ignore.Oracle
	idx      *index.Engine
}

// New returns a sync engine wired to the given object store, ignore oracle
// and index engine for repoRoot.
func New(repoRoot string, objects *objstore.Store, oracle *ignore.Oracle, idx *index.Engine) *Engine {
	return &Engine{repoRoot: repoRoot, objects: objects, oracle: oracle, idx: idx}
}

type candidate struct {
	relPath string
	info    fs.FileInfo
}

// discover walks the working tree (skipping .helix and anything the ignore
// oracle excludes) and returns every regular file and symlink found,
// relative to the repo root.
func (e *Engine) discover() ([]candidate, error) {
	var out []candidate
	err := filepath.WalkDir(e.repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == e.repoRoot {
			return nil
		}
		rel, err := filepath.Rel(e.repoRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		isDir := d.IsDir()
		if e.oracle.IsIgnored(rel, isDir) {
			if isDir {
				return filepath.SkipDir
			}
			return nil
		}
		if isDir {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink == 0 && !info.Mode().IsRegular() {
			return nil
		}
		out = append(out, candidate{relPath: rel, info: info})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync: walk working tree: %w", err)
	}
	return out, nil
}

// FullRebuild re-enumerates the entire working tree, hashes every
// candidate file in parallel, writes blob objects for content not already
// present, and replaces the index's entry set. Every discovered path is
// recorded TRACKED and STAGED at its current content, since a rebuild has
// no other source of prior staging intent once the index file itself is
// gone.
func (e *Engine) FullRebuild() error {
	candidates, err := e.discover()
	if err != nil {
		return err
	}

	type hashed struct {
		candidate
		oid     hash.Digest
		content []byte
	}
	results := make([]hashed, len(candidates))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			content, err := os.ReadFile(filepath.Join(e.repoRoot, c.relPath))
			if err != nil {
				return fmt.Errorf("sync: read %q: %w", c.relPath, err)
			}
			results[i] = hashed{candidate: c, oid: hash.Sum(content), content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.idx.ResetEntries()
	for _, r := range results {
		if err := e.objects.PutWithDigest(object.BlobKind, r.oid, r.content); err != nil {
			return fmt.Errorf("sync: write blob for %q: %w", r.relPath, err)
		}
		mode := filemode.New(r.info.Mode())
		if err := e.idx.StageFile(r.relPath, r.oid, uint64(len(r.content)), uint64(r.info.ModTime().Unix()), uint32(r.info.ModTime().Nanosecond()), uint32(mode)); err != nil {
			return fmt.Errorf("sync: stage %q: %w", r.relPath, err)
		}
	}

	return e.idx.Persist()
}

// IncrementalRefresh applies a five-step reconciliation to a set of
// changed paths reported by the filesystem watcher. stageIntent
// controls step 2/4: when a path is new or modified, the caller decides
// whether it should also be marked STAGED (e.g. because the user is
// running a "stage all dirty" flow) or merely flagged for later staging.
func (e *Engine) IncrementalRefresh(changedPaths []string, stageIntent bool) error {
	for _, rel := range changedPaths {
		if err := e.refreshOne(rel, stageIntent); err != nil {
			return err
		}
	}
	return e.idx.Persist()
}

func (e *Engine) refreshOne(rel string, stageIntent bool) error {
	full := filepath.Join(e.repoRoot, rel)
	info, statErr := os.Lstat(full)
	existing, tracked := e.idx.Get(rel)

	switch {
	case statErr != nil && os.IsNotExist(statErr):
		if tracked {
			existing.Flags |= idxfmt.FlagDeleted
			return e.idx.Upsert(existing)
		}
		e.idx.Remove(rel)
		return nil

	case statErr != nil:
		return fmt.Errorf("sync: stat %q: %w", rel, statErr)

	case !tracked:
		if e.oracle.IsIgnored(rel, info.IsDir()) || info.IsDir() {
			return nil
		}
		if !stageIntent {
			return e.idx.ApplyWorktreeChanges([]string{rel})
		}
		return e.stageWithBlob(rel)

	default:
		sizeOrTimeChanged := uint64(info.Size()) != existing.Size ||
			uint64(info.ModTime().Unix()) != existing.MtimeSec ||
			uint32(info.ModTime().Nanosecond()) != existing.MtimeNsec
		if !sizeOrTimeChanged {
			return nil
		}
		if !stageIntent {
			return e.idx.ApplyWorktreeChanges([]string{rel})
		}
		return e.stageWithBlob(rel)
	}
}

func (e *Engine) stageWithBlob(rel string) error {
	oid, content, err := e.idx.StageWorktreeFile(rel)
	if err != nil {
		return err
	}
	return e.objects.PutWithDigest(object.BlobKind, oid, content)
}

