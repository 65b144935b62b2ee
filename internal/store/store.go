// Package store provides the key-value store shared by the scheduler and
// the pages it opens. Every handle writes under an origin and watchers
// learn whether a change came from another origin.
package store

import (
	"context"
	"fmt"
	"time"
)

// Change is delivered to watchers of a key.
type Change struct {
	Key     string
	Value   []byte
	Deleted bool
	// Remote is true if the change was written through a handle with a
	// different origin than the watching one.
	Remote bool
}

// Store is a handle on the shared key-value store.
type Store interface {
	// Origin identifies the execution context this handle writes for.
	Origin() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Watch delivers changes of key made after the call returned. The
	// returned stop function ends the subscription and may be called
	// more than once.
	Watch(ctx context.Context, key string) (<-chan Change, func(), error)
	Close() error
}

// Type selects the store implementation.
type Type string

const (
	MEMORY_STORE_TYPE Type = "memory"
	SQLITE_STORE_TYPE Type = "sqlite"
)

// Config defines the store to open.
type Config struct {
	Type           Type   `yaml:"type" env:"SIGNIN_STORE_TYPE" env-default:"sqlite"`
	Path           string `yaml:"path" env:"SIGNIN_STORE_PATH" env-default:"./signin.db"`
	PollIntervalMS int    `yaml:"poll_interval_ms" env-default:"200"`
}

func (c *Config) pollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Opener hands out store handles for different origins that all see the
// same data.
type Opener interface {
	Handle(origin string) Store
	Close() error
}

// New opens the configured store.
func New(c *Config) (Opener, error) {
	switch c.Type {
	case MEMORY_STORE_TYPE:
		return NewHub(), nil
	case SQLITE_STORE_TYPE, "":
		return OpenSQLite(c.Path, c.pollInterval())
	default:
		return nil, fmt.Errorf("store of type '%s' not implemented", c.Type)
	}
}
