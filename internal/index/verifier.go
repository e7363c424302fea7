package index

import (
	"errors"
	"os"

	idxfmt "github.com/helixvcs/helix/plumbing/format/index"
)

// State is the Verifier's answer: it never returns an error, only one of
// these enumerated states. Every state other than Valid means "rebuild"
// to the caller.
type State uint8

const (
	Valid State = iota
	Missing
	Corrupt
	SizeMismatch
	MtimeMismatch
	WrongRepo
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Missing:
		return "missing"
	case Corrupt:
		return "corrupt"
	case SizeMismatch:
		return "size-mismatch"
	case MtimeMismatch:
		return "mtime-mismatch"
	case WrongRepo:
		return "wrong-repo"
	default:
		return "unknown"
	}
}

// Rebuild reports whether consumers should treat s as "rebuild", which is
// every state except Valid.
func (s State) Rebuild() bool { return s != Valid }

// Verify inspects the on-disk index file for repoRoot and classifies its
// state relative to the filesystem. It never returns a Go error: any I/O
// or decode failure is folded into one of the enumerated states.
func Verify(repoRoot string) (State, idxfmt.Header, []idxfmt.Entry) {
	idxPath := New(repoRoot).idxPath

	info, statErr := os.Stat(idxPath)
	if statErr != nil {
		return Missing, idxfmt.Header{}, nil
	}

	raw, err := os.ReadFile(idxPath)
	if err != nil {
		return Missing, idxfmt.Header{}, nil
	}

	header, entries, err := idxfmt.Decode(raw)
	if err != nil {
		if errors.Is(err, idxfmt.ErrTruncated) ||
			errors.Is(err, idxfmt.ErrChecksumMismatch) ||
			errors.Is(err, idxfmt.ErrBadMagic) ||
			errors.Is(err, idxfmt.ErrUnsupportedVersion) {
			return Corrupt, idxfmt.Header{}, nil
		}
		return Corrupt, idxfmt.Header{}, nil
	}

	if header.RepoMarker != RepoMarker(repoRoot) {
		return WrongRepo, header, entries
	}

	if header.LastModified != 0 && uint64(info.ModTime().Unix()) > header.LastModified+staleWindowSeconds {
		return MtimeMismatch, header, entries
	}

	return Valid, header, entries
}

// staleWindowSeconds bounds how far the index file's on-disk mtime may run
// ahead of the LastModified field it itself recorded before the Verifier
// treats that gap as evidence of an out-of-band write (e.g. a restored
// backup) rather than clock skew between persist() and stat().
const staleWindowSeconds = 2

// Load reads repoRoot's index and returns a populated Engine plus the
// Verifier's state. When the state is not Valid, the returned Engine is a
// fresh, empty one (generation 0) and the caller — normally the sync
// engine — is responsible for running a full rebuild.
func Load(repoRoot string) (*Engine, State) {
	state, header, entries := Verify(repoRoot)
	if state != Valid {
		return New(repoRoot), state
	}

	e := New(repoRoot)
	e.header = header
	e.entries = entries
	e.reindex()
	return e, state
}
