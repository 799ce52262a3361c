package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
	"github.com/marmos91/dittostore/pkg/meta"
)

// VerifyIntegrity re-reads the handle's full content through the regular
// read path, recomputes its SHA-256 and compares it to the stored hash.
//
// A mismatch (corrupt or truncated chunk data) returns (false, nil): it is
// an expected checkable condition, not a fault. Returns ErrNotFound for an
// unknown ContentID; storage failures propagate as errors.
func (s *Store) VerifyIntegrity(ctx context.Context, id blob.ContentID) (bool, error) {
	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}

	rec, err := s.meta.GetContent(ctx, id)
	if errors.Is(err, meta.ErrNotFound) {
		return false, fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to get content %s: %w", id, err)
	}

	r, err := s.Read(ctx, id)
	if err != nil {
		return false, err
	}
	defer r.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		// A missing chunk means the content is damaged, not that the
		// verification failed to run.
		if errors.Is(err, chunk.ErrChunkNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read content %s: %w", id, err)
	}

	actual, err := blob.ContentHashFromBytes(hasher.Sum(nil))
	if err != nil {
		return false, err
	}

	return actual == rec.Hash, nil
}
