// Package commitbuilder assembles and writes commit objects: it takes
// the current index state, lowers it into a tree via treebuilder,
// writes the commit, advances the target ref through the ref store's CAS,
// and clears staged flags in the index engine once everything else has
// succeeded.
package commitbuilder

import (
	"fmt"

	"github.com/helixvcs/helix/internal/index"
	"github.com/helixvcs/helix/internal/treebuilder"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
	"github.com/helixvcs/helix/storage/refstore"
)

// Builder writes commits for one repository.
type Builder struct {
	objects *objstore.Store
	refs    *refstore.Store
	idx     *index.Engine
}

// New returns a commit builder wired to the given stores and index engine.
func New(objects *objstore.Store, refs *refstore.Store, idx *index.Engine) *Builder {
	return &Builder{objects: objects, refs: refs, idx: idx}
}

// Request describes the commit to create.
type Request struct {
	Ref       string // e.g. "heads/main"
	Parents   []hash.Digest
	Author    object.Signature
	Committer object.Signature
	Message   string
}

// Commit lowers the index's current entries into a tree, writes the
// resulting commit object, advances Ref to it via CAS (expecting it to
// still be at the first listed parent, or absent for a root commit), then
// clears STAGED flags and persists the index. The ref update and the index
// clear both happen only after the commit object itself is durable.
func (b *Builder) Commit(req Request) (hash.Digest, error) {
	entries := b.idx.All()

	treeDigest, err := treebuilder.Build(b.objects, entries)
	if err != nil {
		return hash.Digest{}, fmt.Errorf("commitbuilder: build tree: %w", err)
	}

	commit := &object.Commit{
		Tree:      treeDigest,
		Parents:   req.Parents,
		Author:    req.Author,
		Committer: req.Committer,
		Message:   req.Message,
	}

	digest, err := b.objects.PutRaw(object.CommitKind, commit.Encode())
	if err != nil {
		return hash.Digest{}, fmt.Errorf("commitbuilder: write commit: %w", err)
	}

	expected := hash.Zero
	if len(req.Parents) > 0 {
		expected = req.Parents[0]
	}
	if err := b.refs.CAS(req.Ref, expected, digest); err != nil {
		return hash.Digest{}, fmt.Errorf("commitbuilder: update ref %q: %w", req.Ref, err)
	}

	b.idx.ClearStagedFlagsAfterCommit()
	if err := b.idx.Persist(); err != nil {
		return hash.Digest{}, fmt.Errorf("commitbuilder: persist index after commit: %w", err)
	}

	return digest, nil
}
