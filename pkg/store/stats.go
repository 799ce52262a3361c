package store

import (
	"context"
	"fmt"
)

// Stats contains combined store statistics.
type Stats struct {
	// ContentCount is the number of content handles.
	ContentCount uint64

	// HashCount is the number of distinct content values.
	HashCount uint64

	// ChunkCount is the number of physical chunks in chunk storage.
	ChunkCount uint64

	// LogicalBytes is the sum of content sizes over all handles.
	LogicalBytes uint64

	// UniqueBytes is the sum of content sizes over distinct values.
	UniqueBytes uint64

	// PhysicalBytes is the space actually used by chunk storage. Below
	// UniqueBytes when unrelated content values share chunks.
	PhysicalBytes uint64
}

// DedupRatio returns logical over physical bytes, the space multiplier
// deduplication achieves. Returns 1 for an empty store.
func (s Stats) DedupRatio() float64 {
	if s.PhysicalBytes == 0 {
		return 1
	}
	return float64(s.LogicalBytes) / float64(s.PhysicalBytes)
}

// Stats returns combined metadata and chunk storage statistics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	metaStats, err := s.meta.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata stats: %w", err)
	}

	chunkStats, err := s.chunks.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk storage stats: %w", err)
	}

	return &Stats{
		ContentCount:  metaStats.ContentCount,
		HashCount:     metaStats.HashCount,
		ChunkCount:    chunkStats.ChunkCount,
		LogicalBytes:  metaStats.LogicalBytes,
		UniqueBytes:   metaStats.UniqueBytes,
		PhysicalBytes: chunkStats.UsedBytes,
	}, nil
}
