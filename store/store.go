// Package store persists models, A/B tests and monitoring data, either as
// JSON files in a directory tree or in a SQLite database.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/teilomillet/relcheck/abtest"
	"github.com/teilomillet/relcheck/config"
	"github.com/teilomillet/relcheck/monitor"
	"github.com/teilomillet/relcheck/registry"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Store serves every persistence interface of relcheck.
type Store interface {
	registry.Storage
	abtest.Storage
	monitor.Storage
	Close() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// SQLiteFile is the database file name used inside the data directory.
const SQLiteFile = "relcheck.db"

// Open returns the backend selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreFile, "":
		return NewFileStore(cfg.Dir)
	case config.StoreSQLite:
		return NewSQLiteStore(filepath.Join(cfg.Dir, SQLiteFile))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// checkKey rejects keys that cannot be used as a single path element.
func checkKey(kind, key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid %s %q", kind, key)
	}
	return nil
}
