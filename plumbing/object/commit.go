package object

import (
	"fmt"

	"github.com/helixvcs/helix/internal/binutil"
	"github.com/helixvcs/helix/plumbing/hash"
)

// Commit is the assembled root of one point in the history graph: a tree
// plus zero or more parents and author/committer metadata.
type Commit struct {
	Tree      hash.Digest
	Parents   []hash.Digest
	Author    Signature
	Committer Signature
	Message   string
}

// Encode serializes the commit as:
//
//	tree_digest(32) | parent_count(u32 LE) | parents(32*parent_count) |
//	author_line(u16-length-prefixed) | committer_line(u16-length-prefixed) |
//	message(u32-length-prefixed)
func (c *Commit) Encode() []byte {
	author := []byte(c.Author.String())
	committer := []byte(c.Committer.String())
	message := []byte(c.Message)

	w := binutil.NewWriter(32 + 4 + 32*len(c.Parents) + 2 + len(author) + 2 + len(committer) + 4 + len(message))

	w.Raw(c.Tree[:])
	w.U32(uint32(len(c.Parents)))
	for _, p := range c.Parents {
		w.Raw(p[:])
	}
	w.U16(uint16(len(author)))
	w.Raw(author)
	w.U16(uint16(len(committer)))
	w.Raw(committer)
	w.U32(uint32(len(message)))
	w.Raw(message)

	return w.Bytes()
}

// DecodeCommit parses the raw bytes of a commit object as produced by
// Encode.
func DecodeCommit(raw []byte) (*Commit, error) {
	r := binutil.NewReader(raw)

	treeBytes, err := r.Raw(hash.Size)
	if err != nil {
		return nil, fmt.Errorf("object: commit tree digest: %w", err)
	}
	var tree hash.Digest
	copy(tree[:], treeBytes)

	parentCount, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("object: commit parent_count: %w", err)
	}

	parents := make([]hash.Digest, 0, parentCount)
	for i := uint32(0); i < parentCount; i++ {
		pBytes, err := r.Raw(hash.Size)
		if err != nil {
			return nil, fmt.Errorf("object: commit parent %d: %w", i, err)
		}
		var p hash.Digest
		copy(p[:], pBytes)
		parents = append(parents, p)
	}

	authorLine, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("object: commit author_line: %w", err)
	}
	author, err := ParseSignature(authorLine)
	if err != nil {
		return nil, fmt.Errorf("object: commit author_line: %w", err)
	}

	committerLine, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("object: commit committer_line: %w", err)
	}
	committer, err := ParseSignature(committerLine)
	if err != nil {
		return nil, fmt.Errorf("object: commit committer_line: %w", err)
	}

	msgLen, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("object: commit message length: %w", err)
	}
	msgBytes, err := r.Raw(int(msgLen))
	if err != nil {
		return nil, fmt.Errorf("object: commit message: %w", err)
	}

	if r.Remaining() != 0 {
		return nil, fmt.Errorf("object: commit has %d trailing bytes", r.Remaining())
	}

	return &Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Message:   string(msgBytes),
	}, nil
}

func readLine(r *binutil.Reader) (string, error) {
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	b, err := r.Raw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HeaderOnly parses just the tree digest and parent list from a commit's
// raw bytes, skipping author/committer/message. The Reachability Walker
// uses this to traverse history without allocating the full Commit.
func HeaderOnly(raw []byte) (tree hash.Digest, parents []hash.Digest, err error) {
	r := binutil.NewReader(raw)

	treeBytes, err := r.Raw(hash.Size)
	if err != nil {
		return hash.Digest{}, nil, fmt.Errorf("object: commit tree digest: %w", err)
	}
	copy(tree[:], treeBytes)

	parentCount, err := r.U32()
	if err != nil {
		return hash.Digest{}, nil, fmt.Errorf("object: commit parent_count: %w", err)
	}

	parents = make([]hash.Digest, 0, parentCount)
	for i := uint32(0); i < parentCount; i++ {
		pBytes, err := r.Raw(hash.Size)
		if err != nil {
			return hash.Digest{}, nil, fmt.Errorf("object: commit parent %d: %w", i, err)
		}
		var p hash.Digest
		copy(p[:], pBytes)
		parents = append(parents, p)
	}

	return tree, parents, nil
}
