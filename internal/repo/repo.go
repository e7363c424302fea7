// Package repo wires together the Object Store, Ref Store, Index Engine,
// Sync Engine, Tree Builder and Commit Builder into a single repository
// handle, and owns HEAD: a file that names either a branch ref
// symbolically or, when detached, a commit digest directly.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/helixvcs/helix/internal/commitbuilder"
	"github.com/helixvcs/helix/internal/config"
	"github.com/helixvcs/helix/internal/ignore"
	"github.com/helixvcs/helix/internal/index"
	"github.com/helixvcs/helix/internal/sync"
	"github.com/helixvcs/helix/internal/treebuilder"
	"github.com/helixvcs/helix/internal/watch"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
	"github.com/helixvcs/helix/storage/refstore"
)

const headPath = ".helix/HEAD"
const branchPrefix = "ref: "

// ErrNoHead is returned when HEAD exists but resolves to no commit yet
// (a fresh branch before its first commit).
var ErrNoHead = errors.New("repo: HEAD does not resolve to a commit")

// Repository is the top-level handle a CLI or other caller opens once per
// repository root.
type Repository struct {
	root string
	log  *slog.Logger

	Objects *objstore.Store
	Refs    *refstore.Store
	Index   *index.Engine
	Sync    *sync.Engine
	Commits *commitbuilder.Builder
	Config  *config.Config
}

// Open loads an existing repository at root: verifies and (if necessary)
// rebuilds the index, and wires every component above it. cfgPath is the
// path to config.toml; a missing config file falls back to an empty
// Config rather than failing Open, since not every repository needs one.
func Open(root string, cfgPath string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	objects, err := objstore.Open(root)
	if err != nil {
		return nil, fmt.Errorf("repo: open object store: %w", err)
	}
	refs, err := refstore.Open(root)
	if err != nil {
		return nil, fmt.Errorf("repo: open ref store: %w", err)
	}

	idxEngine, state := index.Load(root)
	if state.Rebuild() {
		logger.Warn("index rebuild required", "state", state.String())
	}

	oracle, err := ignore.New(root, "")
	if err != nil {
		return nil, fmt.Errorf("repo: build ignore oracle: %w", err)
	}
	syncEngine := sync.New(root, objects, oracle, idxEngine)

	if state.Rebuild() {
		if err := syncEngine.FullRebuild(); err != nil {
			return nil, fmt.Errorf("repo: rebuild index: %w", err)
		}
		logger.Debug("index rebuilt")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("repo: load config: %w", err)
		}
		cfg = &config.Config{}
	}

	return &Repository{
		root:    root,
		log:     logger,
		Objects: objects,
		Refs:    refs,
		Index:   idxEngine,
		Sync:    syncEngine,
		Commits: commitbuilder.New(objects, refs, idxEngine),
		Config:  cfg,
	}, nil
}

// Init creates a fresh repository at root: empty object/ref stores, an
// empty index and HEAD pointing at the default branch (which does not yet
// exist as a ref).
func Init(root, defaultBranch string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultBranch == "" {
		defaultBranch = "heads/main"
	}

	if err := os.MkdirAll(filepath.Join(root, ".helix"), 0o755); err != nil {
		return nil, fmt.Errorf("repo: create .helix: %w", err)
	}

	objects, err := objstore.Open(root)
	if err != nil {
		return nil, fmt.Errorf("repo: open object store: %w", err)
	}
	refs, err := refstore.Open(root)
	if err != nil {
		return nil, fmt.Errorf("repo: open ref store: %w", err)
	}

	idxEngine := index.New(root)
	if err := idxEngine.Persist(); err != nil {
		return nil, fmt.Errorf("repo: persist initial index: %w", err)
	}

	oracle, err := ignore.New(root, "")
	if err != nil {
		return nil, fmt.Errorf("repo: build ignore oracle: %w", err)
	}
	syncEngine := sync.New(root, objects, oracle, idxEngine)

	r := &Repository{
		root:    root,
		log:     logger,
		Objects: objects,
		Refs:    refs,
		Index:   idxEngine,
		Sync:    syncEngine,
		Commits: commitbuilder.New(objects, refs, idxEngine),
		Config:  &config.Config{},
	}

	if err := r.SetHeadToBranch(defaultBranch); err != nil {
		return nil, err
	}
	return r, nil
}

// Head reports HEAD's current target: either a branch ref name (symbolic
// == true) or a commit digest directly (detached HEAD).
func (r *Repository) Head() (target string, symbolic bool, err error) {
	raw, err := os.ReadFile(filepath.Join(r.root, headPath))
	if err != nil {
		return "", false, fmt.Errorf("repo: read HEAD: %w", err)
	}
	line := strings.TrimSpace(string(raw))

	if strings.HasPrefix(line, branchPrefix) {
		return strings.TrimPrefix(line, branchPrefix), true, nil
	}
	return line, false, nil
}

// HeadCommit resolves HEAD all the way to a commit digest, following a
// symbolic ref through the ref store if necessary.
func (r *Repository) HeadCommit() (hash.Digest, error) {
	target, symbolic, err := r.Head()
	if err != nil {
		return hash.Digest{}, err
	}
	if !symbolic {
		return hash.ParseHex(target)
	}

	digest, exists, err := r.Refs.Get(target)
	if err != nil {
		return hash.Digest{}, fmt.Errorf("repo: resolve HEAD ref %q: %w", target, err)
	}
	if !exists {
		return hash.Digest{}, ErrNoHead
	}
	return digest, nil
}

// SetHeadToBranch points HEAD symbolically at a branch ref (e.g.
// "heads/main"), leaving the branch ref's own value untouched.
func (r *Repository) SetHeadToBranch(ref string) error {
	return r.writeHead(branchPrefix + ref)
}

// DetachHeadTo points HEAD directly at a commit digest, the state entered
// by checking out a specific commit rather than a branch.
func (r *Repository) DetachHeadTo(commit hash.Digest) error {
	return r.writeHead(commit.String())
}

func (r *Repository) writeHead(line string) error {
	path := filepath.Join(r.root, headPath)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*-HEAD")
	if err != nil {
		return fmt.Errorf("repo: create temp HEAD: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(line + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("repo: write HEAD: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("repo: sync HEAD: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("repo: close HEAD: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("repo: rename HEAD into place: %w", err)
	}
	return nil
}

// Commit builds a commit from the index's current state, using the
// configured user identity for both author and committer, and advances
// HEAD's branch (if HEAD is symbolic) to the result. A detached HEAD is
// advanced directly, without touching any branch ref.
func (r *Repository) Commit(message string, now func() object.Signature) (hash.Digest, error) {
	target, symbolic, err := r.Head()
	if err != nil {
		return hash.Digest{}, err
	}

	var parents []hash.Digest
	if head, herr := r.HeadCommit(); herr == nil {
		parents = []hash.Digest{head}
	} else if !errors.Is(herr, ErrNoHead) {
		return hash.Digest{}, herr
	}

	sig := now()
	if sig.Name == "" {
		sig.Name = r.Config.User.Name
	}
	if sig.Email == "" {
		sig.Email = r.Config.User.Email
	}

	if !symbolic {
		digest, err := r.commitDetached(parents, sig, message)
		if err != nil {
			return hash.Digest{}, err
		}
		return digest, r.DetachHeadTo(digest)
	}

	digest, err := r.Commits.Commit(commitbuilder.Request{
		Ref:       target,
		Parents:   parents,
		Author:    sig,
		Committer: sig,
		Message:   message,
	})
	if err != nil {
		return hash.Digest{}, err
	}
	r.log.Debug("committed", "ref", target, "digest", digest.String())
	return digest, nil
}

// commitDetached writes a commit without advancing any named ref. Unlike
// Commit's normal path, there is no branch ref to CAS through — so this
// builds the tree and commit object directly, the same two steps
// commitbuilder.Commit performs internally, and clears the index's staged
// flags itself afterward.
func (r *Repository) commitDetached(parents []hash.Digest, sig object.Signature, message string) (hash.Digest, error) {
	treeDigest, err := treebuilder.Build(r.Objects, r.Index.All())
	if err != nil {
		return hash.Digest{}, fmt.Errorf("repo: build tree for detached commit: %w", err)
	}

	commit := &object.Commit{
		Tree:      treeDigest,
		Parents:   parents,
		Author:    sig,
		Committer: sig,
		Message:   message,
	}
	digest, err := r.Objects.PutRaw(object.CommitKind, commit.Encode())
	if err != nil {
		return hash.Digest{}, fmt.Errorf("repo: write detached commit: %w", err)
	}

	r.Index.ClearStagedFlagsAfterCommit()
	if err := r.Index.Persist(); err != nil {
		return hash.Digest{}, fmt.Errorf("repo: persist index after detached commit: %w", err)
	}
	return digest, nil
}

// WatchAndSync starts a filesystem watcher on the repository's worktree
// and keeps the index incrementally reconciled for as long as ctx stays
// alive. A path reported as the index file itself (edited or replaced by
// something other than this process) is treated as a full rebuild, since
// there is no way to merge an externally-written index against the one
// already loaded in memory; every other path goes through the Sync
// Engine's incremental refresh. Watcher errors (permission failures,
// exhausted inotify watches) are logged and do not stop the loop.
func (r *Repository) WatchAndSync(ctx context.Context) error {
	w, err := watch.New(r.root)
	if err != nil {
		return fmt.Errorf("repo: start watcher: %w", err)
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.IndexChanged {
				r.log.Warn("index file changed externally, rebuilding", "path", ev.Path)
				if err := r.Sync.FullRebuild(); err != nil {
					return fmt.Errorf("repo: rebuild after external index change: %w", err)
				}
				continue
			}
			if err := r.Sync.IncrementalRefresh([]string{ev.Path}, true); err != nil {
				return fmt.Errorf("repo: incremental refresh of %q: %w", ev.Path, err)
			}
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			r.log.Warn("watcher error", "error", err)
		}
	}
}
