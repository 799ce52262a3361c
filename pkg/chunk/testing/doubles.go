package testing

import (
	"context"
	"sync"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
)

// CountingStore wraps a chunk.Store and counts reads per ChunkID.
//
// Engine tests use it to assert read locality: a bounded read that falls
// inside one chunk must fetch exactly that chunk and nothing else.
type CountingStore struct {
	chunk.Store

	mu    sync.Mutex
	reads map[blob.ChunkID]int
}

// NewCountingStore wraps inner with read instrumentation.
func NewCountingStore(inner chunk.Store) *CountingStore {
	return &CountingStore{
		Store: inner,
		reads: make(map[blob.ChunkID]int),
	}
}

// ReadChunk counts the access then delegates.
func (s *CountingStore) ReadChunk(ctx context.Context, id blob.ChunkID) ([]byte, error) {
	s.mu.Lock()
	s.reads[id]++
	s.mu.Unlock()
	return s.Store.ReadChunk(ctx, id)
}

// Reads returns how many times the chunk was read.
func (s *CountingStore) Reads(id blob.ChunkID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[id]
}

// TotalReads returns the number of ReadChunk calls across all chunks.
func (s *CountingStore) TotalReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.reads {
		total += n
	}
	return total
}

// ResetReads clears the read counters.
func (s *CountingStore) ResetReads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = make(map[blob.ChunkID]int)
}

// RecordingStore wraps a chunk.Store and records every WriteChunk and
// delete call.
//
// Engine tests use it to assert that aborting a session never touches chunk
// storage, and that garbage collection deletes exactly the orphaned chunks.
type RecordingStore struct {
	chunk.Store

	mu      sync.Mutex
	writes  []blob.ChunkID
	deletes []blob.ChunkID
}

// NewRecordingStore wraps inner with call recording.
func NewRecordingStore(inner chunk.Store) *RecordingStore {
	return &RecordingStore{Store: inner}
}

// WriteChunk records the call then delegates.
func (s *RecordingStore) WriteChunk(ctx context.Context, id blob.ChunkID, data []byte) error {
	s.mu.Lock()
	s.writes = append(s.writes, id)
	s.mu.Unlock()
	return s.Store.WriteChunk(ctx, id, data)
}

// DeleteChunk records the call then delegates.
func (s *RecordingStore) DeleteChunk(ctx context.Context, id blob.ChunkID) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, id)
	s.mu.Unlock()
	return s.Store.DeleteChunk(ctx, id)
}

// DeleteChunks records the calls then delegates.
func (s *RecordingStore) DeleteChunks(ctx context.Context, ids []blob.ChunkID) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, ids...)
	s.mu.Unlock()
	return s.Store.DeleteChunks(ctx, ids)
}

// Writes returns the recorded WriteChunk calls in order.
func (s *RecordingStore) Writes() []blob.ChunkID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]blob.ChunkID, len(s.writes))
	copy(out, s.writes)
	return out
}

// Deletes returns all ChunkIDs passed to DeleteChunk or DeleteChunks.
func (s *RecordingStore) Deletes() []blob.ChunkID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]blob.ChunkID, len(s.deletes))
	copy(out, s.deletes)
	return out
}
