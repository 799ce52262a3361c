package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/meta"
)

// Delete removes a handle and garbage-collects whatever it was the last
// reference to. Returns false for an unknown ContentID.
//
// The cascade runs strictly metadata-first:
//
//  1. Resolve the handle's content hash.
//  2. Delete the handle row.
//  3. If other handles still reference the hash, stop.
//  4. Otherwise delete the hash row and its chunk list, capturing the
//     referenced ChunkIDs.
//  5. Keep only the captured chunks no other hash's chunk list references.
//  6. Bulk-delete those from chunk storage.
//
// Because metadata deletion precedes chunk deletion, a crash anywhere in
// the sequence leaves reclaimable garbage for the maintenance sweep, never
// a chunk list pointing at deleted bytes. Deleting one handle can never
// corrupt content reachable through another, even when they share a hash
// or individual chunks.
func (s *Store) Delete(ctx context.Context, id blob.ContentID) (bool, error) {
	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}

	rec, err := s.meta.GetContent(ctx, id)
	if errors.Is(err, meta.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve content %s: %w", id, err)
	}

	deleted, err := s.meta.DeleteContent(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	if !deleted {
		// A concurrent delete won the race.
		return false, nil
	}

	remaining, err := s.meta.CountContentByHash(ctx, rec.Hash)
	if err != nil {
		return false, fmt.Errorf("failed to count references to %s: %w", rec.Hash, err)
	}
	if remaining > 0 {
		return true, nil
	}

	chunkIDs, err := s.meta.DeleteContentHash(ctx, rec.Hash)
	if err != nil {
		return false, fmt.Errorf("failed to delete content hash %s: %w", rec.Hash, err)
	}

	orphans := make([]blob.ChunkID, 0, len(chunkIDs))
	for _, chunkID := range chunkIDs {
		refs, err := s.meta.CountChunkRefs(ctx, chunkID)
		if err != nil {
			return false, fmt.Errorf("failed to count references to chunk %s: %w", chunkID, err)
		}
		if refs == 0 {
			orphans = append(orphans, chunkID)
		}
	}

	if len(orphans) > 0 {
		if err := s.chunks.DeleteChunks(ctx, orphans); err != nil {
			return false, fmt.Errorf("failed to delete %d orphan chunks: %w", len(orphans), err)
		}
	}

	return true, nil
}
