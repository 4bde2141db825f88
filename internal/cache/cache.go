// Package cache provides the durable key-value slots that outlive a CLI process.
//
// Writers set and clear groups of keys together so readers never observe half of a group.
// Coordination between processes is last-writer-wins.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache: store closed")

// Store is a small string key-value store.
type Store interface {
	// Get returns the value under key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetMany writes every entry in one step.
	SetMany(ctx context.Context, entries map[string]string) error
	// Delete removes every listed key in one step. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Open selects an implementation from location: a redis:// or rediss:// URL opens a
// RedisStore, "memory" an in-process store, anything else is a file path. An empty
// location resolves to DefaultPath.
func Open(ctx context.Context, location string) (Store, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		return NewFileStore(path)
	}
	if location == "memory" {
		return NewMemoryStore(), nil
	}
	if u, err := url.Parse(location); err == nil && (u.Scheme == "redis" || u.Scheme == "rediss") {
		return NewRedisStore(ctx, location, "")
	}
	return NewFileStore(location)
}

// DefaultPath places the cache file in the user's configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cache: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "genmode", "session.json"), nil
}
