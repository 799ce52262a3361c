// Package store implements the content-addressable blob engine: fixed-size
// chunking with whole-content SHA-256 fingerprinting, transparent
// deduplication, reference-counted deletion and seekable chunk-granular
// reads.
//
// The engine composes two capability interfaces and owns no persistence of
// its own:
//
//   - chunk.Store — a flat content-addressed blob map (bytes by ChunkID)
//   - meta.Store — the transactional metadata relations (handles, hashes,
//     chunk lists)
//
// Writes go through a WriteSession (see session.go) that re-segments
// appended bytes into fixed-size chunks; completion writes chunk bytes
// before metadata and inserts the handle row last, so a crash at any point
// leaves only reclaimable garbage, never a handle over incomplete data.
// Deletion (see delete.go) inverts the order: metadata rows go first,
// physical chunks last, and only when no chunk list anywhere still
// references them.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
	"github.com/marmos91/dittostore/pkg/meta"
)

// DefaultChunkSize is the chunk size used when Options.ChunkSize is zero.
const DefaultChunkSize = 1 << 20 // 1 MiB

// Options configures a Store.
type Options struct {
	// ChunkSize is the fixed chunk size in bytes. Every stored chunk has
	// exactly this size except the last chunk of a content value, which
	// may be shorter. Zero selects DefaultChunkSize; negative values are
	// rejected.
	//
	// The chunk size is part of the on-disk layout: changing it on an
	// existing store breaks the offset arithmetic of seekable reads.
	ChunkSize int

	// Generator issues ContentIDs. Nil selects the package-wide default
	// generator in pkg/blob.
	Generator *blob.Generator
}

// Store is the content-addressable blob engine.
//
// Thread Safety:
// Safe for concurrent use. Operations on distinct ContentIDs need no
// coordination; concurrent writes of identical content both succeed, with
// exactly one of them physically storing the bytes.
type Store struct {
	chunks    chunk.Store
	meta      meta.Store
	chunkSize int
	gen       *blob.Generator

	mu     sync.RWMutex
	closed bool
}

// New creates a Store over the given chunk and metadata backends.
//
// Both backends must already be initialized. Returns ErrInvalidChunkSize
// if opts.ChunkSize is negative.
func New(chunks chunk.Store, metaStore meta.Store, opts Options) (*Store, error) {
	if chunks == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	if metaStore == nil {
		return nil, fmt.Errorf("metadata store is required")
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, opts.ChunkSize)
	}

	gen := opts.Generator
	if gen == nil {
		gen = blob.DefaultGenerator()
	}

	return &Store{
		chunks:    chunks,
		meta:      metaStore,
		chunkSize: chunkSize,
		gen:       gen,
	}, nil
}

// ChunkSize returns the configured chunk size in bytes.
func (s *Store) ChunkSize() int {
	return s.chunkSize
}

// Close marks the store closed and closes the metadata backend. Open
// sessions and readers fail on their next operation.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.meta.Close()
}

// checkOpen returns ErrStoreClosed after Close, or the context error if the
// context is already done.
func (s *Store) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Exists reports whether the ContentID resolves to stored content. Does not
// update LastAccessedAt.
func (s *Store) Exists(ctx context.Context, id blob.ContentID) (bool, error) {
	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}

	_, err := s.meta.GetContent(ctx, id)
	if errors.Is(err, meta.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up content %s: %w", id, err)
	}
	return true, nil
}

// GetMetadata returns the handle's metadata and updates its LastAccessedAt.
// Returns ErrNotFound for an unknown ContentID.
func (s *Store) GetMetadata(ctx context.Context, id blob.ContentID) (*meta.ContentRecord, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	rec, err := s.meta.GetContent(ctx, id)
	if errors.Is(err, meta.ErrNotFound) {
		return nil, fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for %s: %w", id, err)
	}

	now := time.Now().UTC()
	if err := s.meta.TouchContent(ctx, id, now); err != nil {
		return nil, fmt.Errorf("failed to touch content %s: %w", id, err)
	}
	rec.LastAccessedAt = now

	return rec, nil
}
