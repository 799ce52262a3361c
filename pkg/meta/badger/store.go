// Package badger implements the metadata store on BadgerDB, a fast embedded
// key-value store with serializable transactions.
//
// Suitable for production embedded use:
//   - Persistent with crash recovery (WAL-based)
//   - ACID transactions back the insert-if-absent and cascade deletes
//   - Efficient prefix scans serve the secondary-key lookups
//
// See keys.go for the key namespace schema and serialization.go for the
// value encoding.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittostore/pkg/meta"
)

// conflictRetries bounds the retry loop around transaction conflicts.
// Badger's SSI aborts one of two racing writers; retrying re-reads the
// state, so a lost insert-if-absent race converges to "already present".
const conflictRetries = 16

// BadgerMetadataStore implements meta.Store on BadgerDB.
//
// Thread Safety: safe for concurrent use; BadgerDB handles concurrency via
// MVCC, and conflicting write transactions are retried.
type BadgerMetadataStore struct {
	db *badger.DB
}

// Config contains configuration for the BadgerDB metadata store.
type Config struct {
	// Path is the directory where BadgerDB keeps its files (value log,
	// LSM tree). Created if missing.
	Path string `mapstructure:"path"`

	// InMemory runs BadgerDB without persistence. Used by tests that want
	// transactional semantics without a temp directory.
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default 64).
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`
}

// NewBadgerMetadataStore opens (or creates) the database at cfg.Path.
//
// The returned store is immediately usable; Initialize is a no-op kept for
// interface symmetry.
func NewBadgerMetadataStore(ctx context.Context, cfg Config) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger metadata store: path is required")
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}

	// Metadata rows are tiny; compression overhead is not worth it.
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(blockCacheMB << 20)
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerMetadataStore{db: db}, nil
}

// Initialize is a no-op: the database is opened at construction. Idempotent.
func (s *BadgerMetadataStore) Initialize(ctx context.Context) error {
	return ctx.Err()
}

// Close flushes and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on conflict.
func (s *BadgerMetadataStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrDBClosed) {
			return meta.ErrStoreClosed
		}
		if errors.Is(err, badger.ErrConflict) && attempt < conflictRetries {
			continue
		}
		return err
	}
}

// view runs fn in a read-only transaction.
func (s *BadgerMetadataStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.View(fn)
	if errors.Is(err, badger.ErrDBClosed) {
		return meta.ErrStoreClosed
	}
	return err
}

// countPrefix counts keys under a prefix without fetching values.
func countPrefix(txn *badger.Txn, prefix []byte) uint64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var n uint64
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}
