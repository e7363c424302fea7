package index

import (
	"errors"
	"os"
	"path/filepath"
)

// atomicWriteFile writes data to path via a sibling temp file, fsync, then
// rename, mirroring the discipline storage/objstore and storage/refstore
// use for their own writes. The index file gets its own copy of this
// helper because it lives one layer up from both and has no reason to
// depend on either.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) (err error) {
	defer func() {
		cerr := f.Close()
		err = errors.Join(err, cerr)
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
