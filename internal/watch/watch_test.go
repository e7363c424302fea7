package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, w *Watcher, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-w.Events():
			got = append(got, ev)
		case <-deadline:
			return got
		}
	}
}

func TestWatcherReportsFileWrite(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".helix"), 0o755))

	w, err := New(root)
	require.NoError(t, err)
	defer w.Close()

	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o644))

	events := drain(t, w, 500*time.Millisecond)
	found := false
	for _, ev := range events {
		if ev.Path == "a.txt" {
			found = true
			assert.False(t, ev.IndexChanged)
		}
	}
	assert.True(t, found, "expected a dirty-set event for a.txt, got %+v", events)
}

func TestWatcherFlagsIndexFileChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".helix"), 0o755))

	w, err := New(root)
	require.NoError(t, err)
	defer w.Close()

	idxPath := filepath.Join(root, ".helix", "helix.idx")
	require.NoError(t, os.WriteFile(idxPath, []byte("idx"), 0o644))

	events := drain(t, w, 500*time.Millisecond)
	found := false
	for _, ev := range events {
		if ev.Path == "helix.idx" || ev.Path == ".helix/helix.idx" {
			found = true
		}
		if ev.IndexChanged {
			found = true
		}
	}
	assert.True(t, found, "expected an index_changed event, got %+v", events)
}

func TestWatcherDiscoversNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".helix"), 0o755))

	w, err := New(root)
	require.NoError(t, err)
	defer w.Close()

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("hi"), 0o644))

	events := drain(t, w, 500*time.Millisecond)
	found := false
	for _, ev := range events {
		if ev.Path == filepath.ToSlash(filepath.Join("sub", "b.txt")) {
			found = true
		}
	}
	assert.True(t, found, "expected a dirty-set event under the new subdirectory, got %+v", events)
}
