// Package kv provides the key-value backends the record set is persisted in.
//
// Every backend stores opaque byte values under string keys. The record store
// only ever uses a single key, so the backends favour simplicity over
// throughput: one row per key, whole-value upserts.
package kv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/dialcodes/internal/config"
)

// Store is a persistent key-value store.
type Store interface {
	// Get returns the value for key. found is false when the key was never set.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite:
		s, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		slog.Info("store opened", "driver", DriverSQLite, "path", cfg.DSN)
		return s, nil

	case DriverPostgres:
		s, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("store opened", "driver", DriverPostgres, "database", s.Database())
		return s, nil

	case DriverMemory:
		slog.Warn("using in-memory store, records will not survive a restart")
		return NewMemory(), nil

	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}
