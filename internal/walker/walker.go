// Package walker implements the reachability walk: given a root commit
// and an optional peer-known commit, it enumerates every object digest
// reachable from the root's commit→tree→blob graph that is not already
// reachable from the peer's commit. It walks the object store directly
// via the lightweight header-only commit decode instead of materializing
// full commit objects; trees are decoded in full to list their entries.
package walker

import (
	"fmt"

	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
)

// Result is the output of a walk: commits first, then trees/blobs, in
// discovery order.
type Result struct {
	Commits []hash.Digest
	Trees   []hash.Digest
	Blobs   []hash.Digest
}

// Len returns the total object count across all three kinds, the value a
// push response reports as received_objects / sent_objects.
func (r Result) Len() int { return len(r.Commits) + len(r.Trees) + len(r.Blobs) }

// Walk enumerates objects reachable from `from` but not from the closure of
// `to`. Pass hash.Zero for to when the peer's state is unknown, which walks
// the full history rooted at from; a `to` commit absent from objects is
// treated the same way. The closure of `to` — every commit it
// can reach plus every tree/blob those commits reference — is computed
// first and excluded wholesale, so a tree or blob unchanged between `to`
// and `from` (same digest, reachable from both) is never reported even
// though `from`'s own walk would otherwise rediscover it.
func Walk(objects *objstore.Store, from hash.Digest, to hash.Digest) (Result, error) {
	seenCommits := map[hash.Digest]bool{}
	seenTrees := map[hash.Digest]bool{}
	seenBlobs := map[hash.Digest]bool{}

	if !to.IsZero() && objects.Has(object.CommitKind, to) {
		if err := markReachable(objects, to, seenCommits, seenTrees, seenBlobs); err != nil {
			return Result{}, err
		}
	}

	var result Result
	frontier := []hash.Digest{from}
	for len(frontier) > 0 {
		c := frontier[0]
		frontier = frontier[1:]

		if c.IsZero() || seenCommits[c] {
			continue
		}
		seenCommits[c] = true

		raw, err := objects.GetRaw(object.CommitKind, c)
		if err != nil {
			return Result{}, fmt.Errorf("walker: read commit %s: %w", c, err)
		}
		tree, parents, err := object.HeaderOnly(raw)
		if err != nil {
			return Result{}, fmt.Errorf("walker: decode commit %s: %w", c, err)
		}

		result.Commits = append(result.Commits, c)

		if err := walkTree(objects, tree, seenTrees, seenBlobs, &result); err != nil {
			return Result{}, err
		}

		frontier = append(frontier, parents...)
	}

	return result, nil
}

// markReachable walks root's full commit→tree→blob closure, marking every
// object it finds as seen without recording anything into a Result. It
// shares the same walkTree helper as the reporting walk by handing it a
// scratch Result whose contents are discarded.
func markReachable(objects *objstore.Store, root hash.Digest, seenCommits, seenTrees, seenBlobs map[hash.Digest]bool) error {
	var discard Result
	frontier := []hash.Digest{root}
	for len(frontier) > 0 {
		c := frontier[0]
		frontier = frontier[1:]

		if c.IsZero() || seenCommits[c] {
			continue
		}
		seenCommits[c] = true

		raw, err := objects.GetRaw(object.CommitKind, c)
		if err != nil {
			return fmt.Errorf("walker: read commit %s: %w", c, err)
		}
		tree, parents, err := object.HeaderOnly(raw)
		if err != nil {
			return fmt.Errorf("walker: decode commit %s: %w", c, err)
		}

		if err := walkTree(objects, tree, seenTrees, seenBlobs, &discard); err != nil {
			return err
		}

		frontier = append(frontier, parents...)
	}
	return nil
}

func walkTree(objects *objstore.Store, treeDigest hash.Digest, seenTrees, seenBlobs map[hash.Digest]bool, result *Result) error {
	if seenTrees[treeDigest] {
		return nil
	}
	seenTrees[treeDigest] = true
	result.Trees = append(result.Trees, treeDigest)

	raw, err := objects.GetRaw(object.TreeKind, treeDigest)
	if err != nil {
		return fmt.Errorf("walker: read tree %s: %w", treeDigest, err)
	}
	tree, err := object.DecodeTree(raw)
	if err != nil {
		return fmt.Errorf("walker: decode tree %s: %w", treeDigest, err)
	}

	for _, entry := range tree.Entries {
		if entry.Kind.IsDir() {
			if err := walkTree(objects, entry.Digest, seenTrees, seenBlobs, result); err != nil {
				return err
			}
			continue
		}
		if seenBlobs[entry.Digest] {
			continue
		}
		seenBlobs[entry.Digest] = true
		result.Blobs = append(result.Blobs, entry.Digest)
	}

	return nil
}
