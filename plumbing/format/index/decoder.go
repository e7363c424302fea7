package index

import (
	"fmt"
	"unicode/utf8"

	"github.com/helixvcs/helix/internal/binutil"
	"github.com/helixvcs/helix/plumbing/hash"
)

// Decode parses the on-disk index format produced by Encode, performing
// validation steps in order: magic, version, length, checksum, then
// per-entry validation.
func Decode(raw []byte) (Header, []Entry, error) {
	if len(raw) < HeaderSize+FooterSize {
		return Header{}, nil, fmt.Errorf("%w: file is only %d bytes", ErrTruncated, len(raw))
	}

	if !bytesEqual(raw[:4], Magic[:]) {
		return Header{}, nil, fmt.Errorf("%w: got %q", ErrBadMagic, raw[:4])
	}

	r := binutil.NewReader(raw)
	r.Skip(4) // magic, already checked

	version, _ := r.U32()
	if version != Version {
		return Header{}, nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, Version)
	}

	generation, _ := r.U64()
	if err := r.Skip(hash.Size); err != nil { // checksum field, read from the raw buffer directly below
		return Header{}, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	entryCount, _ := r.U32()
	createdAt, _ := r.U64()
	lastModified, _ := r.U64()
	repoMarkerBytes, err := r.Raw(hash.Size)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	var repoMarker hash.Digest
	copy(repoMarker[:], repoMarkerBytes)
	if err := r.Skip(HeaderSize - r.Offset()); err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	wantLen := HeaderSize + int(entryCount)*EntrySize + FooterSize
	if len(raw) != wantLen {
		return Header{}, nil, fmt.Errorf("%w: have %d bytes, want %d for %d entries", ErrTruncated, len(raw), wantLen, entryCount)
	}

	const checksumOffset = 4 + 4 + 8 // magic + version + generation
	zeroed := make([]byte, len(raw)-FooterSize)
	copy(zeroed, raw[:len(raw)-FooterSize])
	clear(zeroed[checksumOffset : checksumOffset+hash.Size])
	computed := hash.Sum(zeroed)

	footer := raw[len(raw)-FooterSize:]
	var footerDigest hash.Digest
	copy(footerDigest[:], footer)

	if computed != footerDigest {
		return Header{}, nil, fmt.Errorf("%w: computed %s, footer says %s", ErrChecksumMismatch, computed, footerDigest)
	}

	entries := make([]Entry, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		e, err := readEntry(r)
		if err != nil {
			return Header{}, nil, fmt.Errorf("index: entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}

	h := Header{
		Version:      version,
		Generation:   generation,
		EntryCount:   entryCount,
		CreatedAt:    createdAt,
		LastModified: lastModified,
		RepoMarker:   repoMarker,
	}
	return h, entries, nil
}

func readEntry(r *binutil.Reader) (Entry, error) {
	pathLen, err := r.U16()
	if err != nil {
		return Entry{}, err
	}
	if int(pathLen) > MaxPathLen {
		return Entry{}, fmt.Errorf("%w: path_len=%d", ErrPathTooLong, pathLen)
	}

	pathArea, err := r.Raw(MaxPathLen)
	if err != nil {
		return Entry{}, err
	}
	pathBytes := pathArea[:pathLen]
	if !utf8.Valid(pathBytes) {
		return Entry{}, ErrInvalidPathEncoding
	}
	path := string(pathBytes)

	size, err := r.U64()
	if err != nil {
		return Entry{}, err
	}
	mtimeSec, err := r.U64()
	if err != nil {
		return Entry{}, err
	}
	mtimeNsec, err := r.U32()
	if err != nil {
		return Entry{}, err
	}
	flagsRaw, err := r.U32()
	if err != nil {
		return Entry{}, err
	}
	if EntryFlags(flagsRaw)&^knownFlags != 0 {
		return Entry{}, fmt.Errorf("%w: 0x%x", ErrUnknownFlagBits, flagsRaw)
	}

	oidBytes, err := r.Raw(hash.Size)
	if err != nil {
		return Entry{}, err
	}
	var oid hash.Digest
	copy(oid[:], oidBytes)

	fileMode, err := r.U32()
	if err != nil {
		return Entry{}, err
	}
	conflictStage, err := r.U8()
	if err != nil {
		return Entry{}, err
	}
	if err := r.Skip(33); err != nil {
		return Entry{}, err
	}

	return Entry{
		Path:          path,
		Size:          size,
		MtimeSec:      mtimeSec,
		MtimeNsec:     mtimeNsec,
		Flags:         EntryFlags(flagsRaw),
		OID:           oid,
		FileMode:      fileMode,
		ConflictStage: conflictStage,
	}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
