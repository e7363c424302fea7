// Package config loads Helix's repository configuration file
// (.helix/config.toml): user identity, remote URLs and a handful of core
// settings. Nothing in this module writes the file back; it is meant to be
// hand-edited or written by a CLI layer outside this package's scope.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrNotFound is returned by Load when the config file does not exist.
var ErrNotFound = errors.New("config: file not found")

// User holds the identity attached to commits authored in this repository.
type User struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Remote is a named remote repository location.
type Remote struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// Core holds a handful of tunables. WorkerLimit is parsed and defaulted
// here only: the sync engine's parallel hashing batch and the hashing
// package's batch-hash helper size their pools from runtime.GOMAXPROCS and
// do not read it.
type Core struct {
	WorkerLimit int `toml:"worker_limit"`
}

// Config is the decoded form of .helix/config.toml.
type Config struct {
	User   User     `toml:"user"`
	Remote []Remote `toml:"remote"`
	Core   Core     `toml:"core"`
}

// defaultWorkerLimit mirrors the fallback the Sync Engine's caller would
// otherwise need to hand-roll every time config.toml omits core.worker_limit.
const defaultWorkerLimit = 4

// Load reads and decodes path, filling in defaults for any field the file
// omits. A missing file is reported as ErrNotFound rather than treated as
// empty configuration, since the caller (normally repo.Open) needs to
// distinguish "no config yet" from "config present but minimal".
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Core.WorkerLimit <= 0 {
		cfg.Core.WorkerLimit = defaultWorkerLimit
	}

	return cfg, nil
}

// RemoteByName returns the remote registered under name, if any.
func (c *Config) RemoteByName(name string) (Remote, bool) {
	for _, r := range c.Remote {
		if r.Name == name {
			return r, true
		}
	}
	return Remote{}, false
}
