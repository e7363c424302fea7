package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesUserRemoteAndCore(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[user]
name = "Ada Lovelace"
email = "ada@example.com"

[core]
worker_limit = 8

[[remote]]
name = "origin"
url = "helix://example.com/repo"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", cfg.User.Name)
	assert.Equal(t, "ada@example.com", cfg.User.Email)
	assert.Equal(t, 8, cfg.Core.WorkerLimit)

	remote, ok := cfg.RemoteByName("origin")
	require.True(t, ok)
	assert.Equal(t, "helix://example.com/repo", remote.URL)
}

func TestLoadFillsDefaultWorkerLimitWhenOmitted(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[user]
name = "Ada Lovelace"
email = "ada@example.com"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultWorkerLimit, cfg.Core.WorkerLimit)
}

func TestLoadMissingFileReturnsErrNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoteByNameMissing(t *testing.T) {
	cfg := &Config{}
	_, ok := cfg.RemoteByName("origin")
	assert.False(t, ok)
}
