package index

import (
	"fmt"

	"github.com/helixvcs/helix/internal/binutil"
	"github.com/helixvcs/helix/plumbing/hash"
)

// Encode serializes header and entries into the on-disk index format:
// a 128-byte header, one 296-byte record per entry, and a 32-byte footer
// checksum. Entries are written in the order given; callers (the index
// engine) are responsible for keeping that order sorted by path.
func Encode(h Header, entries []Entry) ([]byte, error) {
	h.EntryCount = uint32(len(entries))

	body := binutil.NewWriter(HeaderSize + len(entries)*EntrySize)
	writeHeader(body, h, hash.Zero)
	for i, e := range entries {
		if err := writeEntry(body, e); err != nil {
			return nil, fmt.Errorf("index: encode entry %d (%q): %w", i, e.Path, err)
		}
	}

	checksum := hash.Sum(body.Bytes())

	out := binutil.NewWriter(HeaderSize + len(entries)*EntrySize + FooterSize)
	writeHeader(out, h, checksum)
	out.Raw(body.Bytes()[HeaderSize:])
	out.Raw(checksum[:])

	return out.Bytes(), nil
}

func writeHeader(w *binutil.Writer, h Header, checksum hash.Digest) {
	start := w.Len()
	w.Raw(Magic[:])
	w.U32(h.Version)
	w.U64(h.Generation)
	w.Raw(checksum[:])
	w.U32(h.EntryCount)
	w.U64(h.CreatedAt)
	w.U64(h.LastModified)
	w.Raw(h.RepoMarker[:])
	w.Pad(start + HeaderSize)
}

func writeEntry(w *binutil.Writer, e Entry) error {
	if len(e.Path) > MaxPathLen {
		return fmt.Errorf("index: path %q exceeds %d bytes (%w)", e.Path, MaxPathLen, ErrPathTooLong)
	}

	start := w.Len()
	w.U16(uint16(len(e.Path)))
	pathAreaStart := w.Len()
	w.Raw([]byte(e.Path))
	w.Pad(pathAreaStart + MaxPathLen)
	w.U64(e.Size)
	w.U64(e.MtimeSec)
	w.U32(e.MtimeNsec)
	w.U32(uint32(e.Flags))
	w.Raw(e.OID[:])
	w.U32(e.FileMode)
	w.U8(e.ConflictStage)
	w.Pad(start + EntrySize)

	return nil
}
