// Package treebuilder lowers a flat set of index entries into the object
// store's tree DAG: directories are grouped bottom-up, each directory's
// child list is sorted by raw component name, and the result is written
// as a TREE object per directory, returning the root digest.
package treebuilder

import (
	"strings"

	idxfmt "github.com/helixvcs/helix/plumbing/format/index"
	"github.com/helixvcs/helix/plumbing/filemode"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
)

// dirNode is one level of the in-memory directory tree being assembled
// before it is serialized bottom-up.
type dirNode struct {
	files map[string]idxfmt.Entry
	dirs  map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{files: make(map[string]idxfmt.Entry), dirs: make(map[string]*dirNode)}
}

func (n *dirNode) child(name string) *dirNode {
	c, ok := n.dirs[name]
	if !ok {
		c = newDirNode()
		n.dirs[name] = c
	}
	return c
}

// Build groups entries by directory prefix and writes a TREE object for
// every directory level, including the root, returning the root tree's
// digest. Only entries with TRACKED or STAGED set are included — purely
// untracked and fully-deleted entries never enter a commit's tree.
func Build(objects *objstore.Store, entries []idxfmt.Entry) (hash.Digest, error) {
	root := newDirNode()

	for _, ent := range entries {
		if !ent.Flags.Has(idxfmt.FlagTracked) && !ent.Flags.Has(idxfmt.FlagStaged) {
			continue
		}
		if ent.Flags.Has(idxfmt.FlagDeleted) {
			continue
		}

		parts := strings.Split(ent.Path, "/")
		cur := root
		for _, dir := range parts[:len(parts)-1] {
			cur = cur.child(dir)
		}
		cur.files[parts[len(parts)-1]] = ent
	}

	return writeDir(objects, root)
}

func writeDir(objects *objstore.Store, n *dirNode) (hash.Digest, error) {
	entries := make([]object.TreeEntry, 0, len(n.files)+len(n.dirs))

	for name, ent := range n.files {
		mode := filemode.FileMode(ent.FileMode)
		entries = append(entries, object.TreeEntry{
			Kind:   object.EntryKindForMode(mode),
			Mode:   mode,
			Size:   ent.Size,
			Name:   name,
			Digest: ent.OID,
		})
	}

	for name, child := range n.dirs {
		digest, err := writeDir(objects, child)
		if err != nil {
			return hash.Digest{}, err
		}
		entries = append(entries, object.TreeEntry{
			Kind:   object.DirEntryKind,
			Mode:   filemode.Dir,
			Name:   name,
			Digest: digest,
		})
	}

	tree, err := object.NewTree(entries)
	if err != nil {
		return hash.Digest{}, err
	}

	digest, err := objects.PutRaw(object.TreeKind, tree.Encode())
	if err != nil {
		return hash.Digest{}, err
	}
	return digest, nil
}
