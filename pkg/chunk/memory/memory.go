// Package memory implements an in-memory chunk store.
//
// All chunks live in a map protected by a RWMutex. The store is designed
// for tests, development and ephemeral deployments:
//   - Fast: every operation is memory-speed
//   - Volatile: chunks are lost on restart
//   - Memory-bound: limited by available RAM
//   - Thread-safe: concurrent readers, exclusive writers
//
// Data is copied on write and on read so caller-owned buffers never alias
// the store's internal state.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
)

// MemoryChunkStore implements chunk.Store using an in-memory map.
type MemoryChunkStore struct {
	// data holds chunk bytes keyed by ChunkID
	data map[blob.ChunkID][]byte

	// mu protects concurrent access to data
	mu sync.RWMutex
}

// NewMemoryChunkStore creates an empty in-memory chunk store.
func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{
		data: make(map[blob.ChunkID][]byte),
	}
}

// Initialize is a no-op; the store is ready at construction.
func (s *MemoryChunkStore) Initialize(ctx context.Context) error {
	return ctx.Err()
}

// WriteChunk stores the chunk bytes, leaving an existing chunk untouched.
func (s *MemoryChunkStore) WriteChunk(ctx context.Context, id blob.ChunkID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent: identical key means identical bytes.
	if _, exists := s.data[id]; exists {
		return nil
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[id] = stored

	return nil
}

// ReadChunk returns a copy of the chunk bytes.
func (s *MemoryChunkStore) ReadChunk(ctx context.Context, id blob.ChunkID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[id]
	if !exists {
		return nil, fmt.Errorf("chunk %s: %w", id, chunk.ErrChunkNotFound)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Exists reports whether the chunk is present.
func (s *MemoryChunkStore) Exists(ctx context.Context, id blob.ChunkID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[id]
	return exists, nil
}

// DeleteChunk removes one chunk. Idempotent.
func (s *MemoryChunkStore) DeleteChunk(ctx context.Context, id blob.ChunkID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

// DeleteChunks removes a batch of chunks atomically under one lock.
func (s *MemoryChunkStore) DeleteChunks(ctx context.Context, ids []blob.ChunkID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.data, id)
	}
	return nil
}

// ListChunks returns the IDs of all stored chunks in map order.
func (s *MemoryChunkStore) ListChunks(ctx context.Context) ([]blob.ChunkID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]blob.ChunkID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats computes statistics from the current map contents.
func (s *MemoryChunkStore) Stats(ctx context.Context) (*chunk.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var used uint64
	for _, data := range s.data {
		used += uint64(len(data))
	}

	count := uint64(len(s.data))
	var avg uint64
	if count > 0 {
		avg = used / count
	}

	return &chunk.Stats{
		ChunkCount:        count,
		UsedBytes:         used,
		AverageChunkBytes: avg,
	}, nil
}
