// Package index defines Helix's binary working-copy index format: a
// versioned, checksummed file recording one record per tracked or staged
// path. Encode and Decode are pure and side-effect-free; the file-handling
// and in-memory status logic lives one layer up, in the index engine.
package index

import "github.com/helixvcs/helix/plumbing/hash"

// Magic is the four-byte signature every index file begins with.
var Magic = [4]byte{'H', 'L', 'I', 'X'}

// Version is the single index format version this implementation produces
// and accepts.
const Version = 2

const (
	// HeaderSize is the fixed on-disk size of Header, in bytes.
	HeaderSize = 128
	// EntrySize is the fixed on-disk size of one Entry record, in bytes.
	EntrySize = 296
	// FooterSize is the fixed on-disk size of Footer, in bytes.
	FooterSize = 32

	// MaxPathLen is the longest path (in bytes) an Entry can hold; longer
	// paths are rejected at staging time with PathTooLong.
	MaxPathLen = 200
)

// EntryFlags is a bitset recording a path's tracking and staging state.
type EntryFlags uint32

const (
	FlagTracked EntryFlags = 1 << iota
	FlagStaged
	FlagModified
	FlagDeleted
	FlagUntracked
	FlagConflict
	FlagAssumeUnchanged
	FlagIgnored
	FlagSymlink

	// knownFlags is the union of every flag bit this version defines;
	// decode rejects any entry carrying bits outside this mask.
	knownFlags = FlagTracked | FlagStaged | FlagModified | FlagDeleted |
		FlagUntracked | FlagConflict | FlagAssumeUnchanged | FlagIgnored | FlagSymlink
)

// Has reports whether all bits in want are set in f.
func (f EntryFlags) Has(want EntryFlags) bool { return f&want == want }

// Header is the fixed 128-byte record at the start of an index file. The
// reserved tail of the header carries RepoMarker, a digest of the
// repository root path: the Verifier uses it to detect an index file that
// was copied or symlinked in from a different repository (WrongRepo),
// since nothing else in the header identifies which repo it belongs to.
type Header struct {
	Version      uint32
	Generation   uint64
	EntryCount   uint32
	CreatedAt    uint64
	LastModified uint64
	RepoMarker   hash.Digest
}

// Entry is one path record. FileMode mirrors plumbing/filemode.FileMode;
// ConflictStage follows the usual merge-stage convention
// (0 = no conflict, 1-3 = base/ours/theirs).
type Entry struct {
	Path          string
	Size          uint64
	MtimeSec      uint64
	MtimeNsec     uint32
	Flags         EntryFlags
	OID           hash.Digest
	FileMode      uint32
	ConflictStage uint8
}

// Status derives the semantic staging state from an entry's flags.
func (e Entry) Status() Status {
	switch {
	case e.Flags.Has(FlagConflict):
		return StatusConflicted
	case !e.Flags.Has(FlagTracked) && e.Flags.Has(FlagStaged):
		return StatusStagedNew
	case !e.Flags.Has(FlagTracked):
		return StatusUntracked
	case e.Flags.Has(FlagStaged) && e.Flags.Has(FlagModified):
		return StatusPartiallyStaged
	case e.Flags.Has(FlagStaged):
		return StatusStaged
	case e.Flags.Has(FlagModified):
		return StatusUnstaged
	default:
		return StatusClean
	}
}

// Status is the semantic state a path is in, derived from its entry flags.
type Status uint8

const (
	StatusClean Status = iota
	StatusStaged
	StatusUnstaged
	StatusPartiallyStaged
	StatusUntracked
	StatusStagedNew
	StatusConflicted
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusStaged:
		return "staged"
	case StatusUnstaged:
		return "unstaged"
	case StatusPartiallyStaged:
		return "partially staged"
	case StatusUntracked:
		return "untracked"
	case StatusStagedNew:
		return "staged-new"
	case StatusConflicted:
		return "conflicted"
	default:
		return "unknown"
	}
}
