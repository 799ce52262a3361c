// Package memory implements an in-memory metadata store.
//
// All three relations live in maps guarded by one RWMutex, which makes
// every interface method trivially atomic. Designed for tests, development
// and ephemeral deployments; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/meta"
)

// MemoryMetadataStore implements meta.Store with in-process maps.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	// contents holds one ContentRecord per handle.
	contents map[blob.ContentID]meta.ContentRecord

	// byHash indexes handle IDs by their content hash (secondary key).
	byHash map[blob.ContentHash]map[blob.ContentID]struct{}

	// hashes holds one ContentHashRecord per distinct content value.
	hashes map[blob.ContentHash]meta.ContentHashRecord

	// chunks holds the ordered chunk list per content value.
	chunks map[blob.ContentHash][]meta.ChunkRecord

	// refs indexes, per chunk, the content hashes whose chunk lists
	// reference it. Kept in lockstep with chunks.
	refs map[blob.ChunkID]map[blob.ContentHash]struct{}

	closed bool
}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		contents: make(map[blob.ContentID]meta.ContentRecord),
		byHash:   make(map[blob.ContentHash]map[blob.ContentID]struct{}),
		hashes:   make(map[blob.ContentHash]meta.ContentHashRecord),
		chunks:   make(map[blob.ContentHash][]meta.ChunkRecord),
		refs:     make(map[blob.ChunkID]map[blob.ContentHash]struct{}),
	}
}

// Initialize is a no-op; the store is ready at construction.
func (s *MemoryMetadataStore) Initialize(ctx context.Context) error {
	return ctx.Err()
}

// Close marks the store unusable.
func (s *MemoryMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryMetadataStore) checkOpen() error {
	if s.closed {
		return meta.ErrStoreClosed
	}
	return nil
}

// PutContent inserts a handle row and its secondary-index entry.
func (s *MemoryMetadataStore) PutContent(ctx context.Context, rec meta.ContentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, exists := s.contents[rec.ID]; exists {
		return fmt.Errorf("content %s: %w", rec.ID, meta.ErrAlreadyExists)
	}

	s.contents[rec.ID] = rec
	idx, ok := s.byHash[rec.Hash]
	if !ok {
		idx = make(map[blob.ContentID]struct{})
		s.byHash[rec.Hash] = idx
	}
	idx[rec.ID] = struct{}{}
	return nil
}

// GetContent returns a copy of the handle row.
func (s *MemoryMetadataStore) GetContent(ctx context.Context, id blob.ContentID) (*meta.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rec, exists := s.contents[id]
	if !exists {
		return nil, fmt.Errorf("content %s: %w", id, meta.ErrNotFound)
	}
	out := rec
	return &out, nil
}

// TouchContent updates LastAccessedAt in place.
func (s *MemoryMetadataStore) TouchContent(ctx context.Context, id blob.ContentID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	rec, exists := s.contents[id]
	if !exists {
		return fmt.Errorf("content %s: %w", id, meta.ErrNotFound)
	}
	rec.LastAccessedAt = at
	s.contents[id] = rec
	return nil
}

// DeleteContent removes the handle row and its secondary-index entry.
func (s *MemoryMetadataStore) DeleteContent(ctx context.Context, id blob.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	rec, exists := s.contents[id]
	if !exists {
		return false, nil
	}

	delete(s.contents, id)
	if idx, ok := s.byHash[rec.Hash]; ok {
		delete(idx, id)
		if len(idx) == 0 {
			delete(s.byHash, rec.Hash)
		}
	}
	return true, nil
}

// CountContentByHash counts handle rows referencing the hash.
func (s *MemoryMetadataStore) CountContentByHash(ctx context.Context, hash blob.ContentHash) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	return uint64(len(s.byHash[hash])), nil
}

// PutContentHashIfAbsent inserts the hash row plus chunk list atomically.
func (s *MemoryMetadataStore) PutContentHashIfAbsent(ctx context.Context, rec meta.ContentHashRecord, chunks []meta.ChunkRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	if _, exists := s.hashes[rec.Hash]; exists {
		return false, nil
	}

	s.hashes[rec.Hash] = rec
	stored := make([]meta.ChunkRecord, len(chunks))
	copy(stored, chunks)
	s.chunks[rec.Hash] = stored

	for _, c := range chunks {
		set, ok := s.refs[c.ChunkID]
		if !ok {
			set = make(map[blob.ContentHash]struct{})
			s.refs[c.ChunkID] = set
		}
		set[rec.Hash] = struct{}{}
	}
	return true, nil
}

// GetContentHash returns a copy of the hash row.
func (s *MemoryMetadataStore) GetContentHash(ctx context.Context, hash blob.ContentHash) (*meta.ContentHashRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rec, exists := s.hashes[hash]
	if !exists {
		return nil, fmt.Errorf("content hash %s: %w", hash, meta.ErrNotFound)
	}
	out := rec
	return &out, nil
}

// GetChunks returns a copy of the ordered chunk list.
func (s *MemoryMetadataStore) GetChunks(ctx context.Context, hash blob.ContentHash) ([]meta.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if _, exists := s.hashes[hash]; !exists {
		return nil, fmt.Errorf("content hash %s: %w", hash, meta.ErrNotFound)
	}

	stored := s.chunks[hash]
	out := make([]meta.ChunkRecord, len(stored))
	copy(out, stored)
	return out, nil
}

// DeleteContentHash removes the hash row, chunk list and ref entries,
// returning the referenced ChunkIDs in index order.
func (s *MemoryMetadataStore) DeleteContentHash(ctx context.Context, hash blob.ContentHash) ([]blob.ChunkID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if _, exists := s.hashes[hash]; !exists {
		return nil, nil
	}

	stored := s.chunks[hash]
	ids := make([]blob.ChunkID, 0, len(stored))
	for _, c := range stored {
		ids = append(ids, c.ChunkID)
		if set, ok := s.refs[c.ChunkID]; ok {
			delete(set, hash)
			if len(set) == 0 {
				delete(s.refs, c.ChunkID)
			}
		}
	}

	delete(s.hashes, hash)
	delete(s.chunks, hash)
	return ids, nil
}

// CountChunkRefs counts distinct hashes whose chunk lists reference the
// chunk. A chunk appearing twice inside one content value still counts that
// value's references individually.
func (s *MemoryMetadataStore) CountChunkRefs(ctx context.Context, id blob.ChunkID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	return uint64(len(s.refs[id])), nil
}

// ListChunkRefs returns the distinct referenced ChunkIDs, sorted for
// deterministic output.
func (s *MemoryMetadataStore) ListChunkRefs(ctx context.Context) ([]blob.ChunkID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ids := make([]blob.ChunkID, 0, len(s.refs))
	for id := range s.refs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids, nil
}

// ListContentHashes returns every stored ContentHash, sorted.
func (s *MemoryMetadataStore) ListContentHashes(ctx context.Context) ([]blob.ContentHash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	hashes := make([]blob.ContentHash, 0, len(s.hashes))
	for h := range s.hashes {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Compare(hashes[j]) < 0 })
	return hashes, nil
}

// Stats computes aggregates from the current maps.
func (s *MemoryMetadataStore) Stats(ctx context.Context) (*meta.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	stats := &meta.Stats{
		ContentCount: uint64(len(s.contents)),
		HashCount:    uint64(len(s.hashes)),
	}
	for _, rec := range s.contents {
		stats.LogicalBytes += rec.Size
	}
	for _, rec := range s.hashes {
		stats.UniqueBytes += rec.Size
	}
	return stats, nil
}
