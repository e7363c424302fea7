// Package filemode defines the POSIX-style file modes Helix stores inside
// index entries and tree entries.
package filemode

import (
	"fmt"
	"io/fs"
)

// FileMode is a POSIX permission-and-type word, as stored verbatim in an
// index Entry's file_mode field and a tree Entry's mode field.
type FileMode uint32

const (
	// Regular is an ordinary, non-executable file.
	Regular FileMode = 0o100644
	// Executable is a regular file with the executable bit set.
	Executable FileMode = 0o100755
	// Symlink is a symbolic link, whose blob content is the link target.
	Symlink FileMode = 0o120000
	// Dir marks a tree entry pointing at a subtree. It never appears as an
	// index entry's file_mode (only files are tracked), only as a tree
	// entry's mode.
	Dir FileMode = 0o40000
)

// New derives a FileMode from the os.FileMode reported for a working-tree
// path.
func New(info fs.FileMode) FileMode {
	switch {
	case info&fs.ModeSymlink != 0:
		return Symlink
	case info.IsDir():
		return Dir
	case info&0o111 != 0:
		return Executable
	default:
		return Regular
	}
}

// IsMalformed reports whether m is not one of the modes Helix understands.
func (m FileMode) IsMalformed() bool {
	switch m {
	case Regular, Executable, Symlink, Dir:
		return false
	default:
		return true
	}
}

func (m FileMode) String() string {
	switch m {
	case Regular:
		return "regular"
	case Executable:
		return "executable"
	case Symlink:
		return "symlink"
	case Dir:
		return "dir"
	default:
		return fmt.Sprintf("filemode(%o)", uint32(m))
	}
}
