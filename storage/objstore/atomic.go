package objstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// atomicWrite writes data to path by first writing to a sibling temp file,
// fsyncing it, and renaming it into place. A half-written file can never be
// observed at path: readers either see the old state or the fully-written
// new one.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if werr := writeAndSync(tmp, data); werr != nil {
		os.Remove(tmpPath)
		return werr
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}

	return nil
}

// writeAndSync writes data to f, fsyncs it and closes it, joining any error
// from the close with one from the write/sync rather than masking it.
func writeAndSync(f *os.File, data []byte) (err error) {
	defer func() {
		cerr := f.Close()
		err = errors.Join(err, cerr)
	}()

	if _, werr := f.Write(data); werr != nil {
		return fmt.Errorf("write temp file: %w", werr)
	}
	if serr := f.Sync(); serr != nil {
		return fmt.Errorf("sync temp file: %w", serr)
	}
	return nil
}
