package object

import (
	"fmt"
	"sort"

	"github.com/helixvcs/helix/internal/binutil"
	"github.com/helixvcs/helix/plumbing/filemode"
	"github.com/helixvcs/helix/plumbing/hash"
)

// EntryKind discriminates what a TreeEntry's digest points at: a blob (for
// the three file-ish kinds) or another tree.
type EntryKind uint8

const (
	FileEntryKind           EntryKind = 0
	FileExecutableEntryKind EntryKind = 1
	DirEntryKind            EntryKind = 2
	SymlinkEntryKind        EntryKind = 3
)

func (k EntryKind) IsDir() bool { return k == DirEntryKind }

// EntryKindForMode maps a file mode to the tree entry kind that points at
// its blob (or subtree, for Dir).
func EntryKindForMode(m filemode.FileMode) EntryKind {
	switch m {
	case filemode.Executable:
		return FileExecutableEntryKind
	case filemode.Symlink:
		return SymlinkEntryKind
	case filemode.Dir:
		return DirEntryKind
	default:
		return FileEntryKind
	}
}

// TreeEntry is one row of a Tree object: a name plus the digest of the blob
// or subtree it refers to.
type TreeEntry struct {
	Kind   EntryKind
	Mode   filemode.FileMode
	Size   uint64
	Name   string
	Digest hash.Digest
}

// Tree is the ordered, deduplicated directory listing object. Entries are
// kept sorted by raw name bytes ascending.
type Tree struct {
	Entries []TreeEntry
}

// NewTree builds a Tree from an unordered entry set, sorting by name and
// rejecting duplicate names (invariant: two entries with the same name at
// the same directory level is a programmer error, not a recoverable one).
func NewTree(entries []TreeEntry) (*Tree, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, fmt.Errorf("object: duplicate tree entry name %q", sorted[i].Name)
		}
	}

	return &Tree{Entries: sorted}, nil
}

// Encode serializes the tree as entry_count u32 LE, then per entry
// kind(1) mode(4) size(8) name_len(2) name oid(32).
func (t *Tree) Encode() []byte {
	w := binutil.NewWriter(4 + len(t.Entries)*64)
	w.U32(uint32(len(t.Entries)))

	for _, e := range t.Entries {
		w.U8(uint8(e.Kind))
		w.U32(uint32(e.Mode))
		w.U64(e.Size)
		w.U16(uint16(len(e.Name)))
		w.Raw([]byte(e.Name))
		w.Raw(e.Digest[:])
	}

	return w.Bytes()
}

// DecodeTree parses the raw bytes of a tree object as produced by Encode.
func DecodeTree(raw []byte) (*Tree, error) {
	r := binutil.NewReader(raw)

	count, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("object: tree header: %w", err)
	}

	entries := make([]TreeEntry, 0, count)
	var prevName string
	for i := uint32(0); i < count; i++ {
		kindByte, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("object: tree entry %d kind: %w", i, err)
		}
		mode, err := r.U32()
		if err != nil {
			return nil, fmt.Errorf("object: tree entry %d mode: %w", i, err)
		}
		size, err := r.U64()
		if err != nil {
			return nil, fmt.Errorf("object: tree entry %d size: %w", i, err)
		}
		nameLen, err := r.U16()
		if err != nil {
			return nil, fmt.Errorf("object: tree entry %d name_len: %w", i, err)
		}
		nameBytes, err := r.Raw(int(nameLen))
		if err != nil {
			return nil, fmt.Errorf("object: tree entry %d name: %w", i, err)
		}
		oidBytes, err := r.Raw(hash.Size)
		if err != nil {
			return nil, fmt.Errorf("object: tree entry %d oid: %w", i, err)
		}

		name := string(nameBytes)
		if i > 0 && name <= prevName {
			return nil, fmt.Errorf("object: tree entries not strictly sorted at %d (%q after %q)", i, name, prevName)
		}
		prevName = name

		var oid hash.Digest
		copy(oid[:], oidBytes)

		entries = append(entries, TreeEntry{
			Kind:   EntryKind(kindByte),
			Mode:   filemode.FileMode(mode),
			Size:   size,
			Name:   name,
			Digest: oid,
		})
	}

	if r.Remaining() != 0 {
		return nil, fmt.Errorf("object: tree has %d trailing bytes", r.Remaining())
	}

	return &Tree{Entries: entries}, nil
}
