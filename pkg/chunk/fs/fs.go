// Package fs implements a filesystem-backed chunk store.
//
// Chunks are stored as regular files named by their hex-encoded ChunkID,
// fanned out over 256 subdirectories keyed by the first two hex characters:
//
//	<base>/ab/abcdef0123...  (64 hex chars)
//
// The fan-out keeps per-directory entry counts manageable for stores with
// millions of chunks. Writes go through a temp file in the same directory
// followed by an atomic rename, so a crash mid-write never leaves a
// half-written chunk under its final name.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
)

// FSChunkStore implements chunk.Store on a local directory tree.
//
// Thread Safety:
// Safe for concurrent use. Two writers racing on the same ChunkID carry
// identical bytes and both rename onto the same final path, so the race is
// harmless. Reads see either nothing or a complete chunk, never a partial
// file, thanks to the temp-file-and-rename write path.
type FSChunkStore struct {
	basePath    string
	initialized bool
}

// NewFSChunkStore creates a filesystem chunk store rooted at basePath.
//
// The directory is not created until Initialize is called.
func NewFSChunkStore(basePath string) *FSChunkStore {
	return &FSChunkStore{basePath: basePath}
}

// Initialize creates the base directory if needed. Idempotent.
func (s *FSChunkStore) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create chunk store directory: %w", err)
	}
	s.initialized = true
	return nil
}

// chunkPath returns the final path for a chunk: <base>/<hh>/<64 hex chars>.
func (s *FSChunkStore) chunkPath(id blob.ChunkID) string {
	hexID := id.String()
	return filepath.Join(s.basePath, hexID[:2], hexID)
}

// WriteChunk stores the chunk bytes via temp file + rename.
//
// An existing chunk is left untouched: the content-addressed name
// guarantees its bytes already equal data.
func (s *FSChunkStore) WriteChunk(ctx context.Context, id blob.ChunkID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.initialized {
		return chunk.ErrStoreNotInitialized
	}

	final := s.chunkPath(id)
	if _, err := os.Stat(final); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat chunk %s: %w", id, err)
	}

	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create fan-out directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+id.String()+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp chunk file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write chunk %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close chunk %s: %w", id, err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit chunk %s: %w", id, err)
	}
	return nil
}

// ReadChunk returns the chunk bytes.
func (s *FSChunkStore) ReadChunk(ctx context.Context, id blob.ChunkID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.initialized {
		return nil, chunk.ErrStoreNotInitialized
	}

	data, err := os.ReadFile(s.chunkPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("chunk %s: %w", id, chunk.ErrChunkNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk %s: %w", id, err)
	}
	return data, nil
}

// Exists reports whether the chunk file is present.
func (s *FSChunkStore) Exists(ctx context.Context, id blob.ChunkID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !s.initialized {
		return false, chunk.ErrStoreNotInitialized
	}

	_, err := os.Stat(s.chunkPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat chunk %s: %w", id, err)
	}
	return true, nil
}

// DeleteChunk removes one chunk file. Idempotent.
func (s *FSChunkStore) DeleteChunk(ctx context.Context, id blob.ChunkID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.initialized {
		return chunk.ErrStoreNotInitialized
	}

	err := os.Remove(s.chunkPath(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete chunk %s: %w", id, err)
	}
	return nil
}

// DeleteChunks removes a batch of chunk files best-effort.
//
// Every deletion is attempted; failures are aggregated into one error.
// Chunks surviving a partial failure are reclaimable garbage for the
// maintenance sweep, never dangling references.
func (s *FSChunkStore) DeleteChunks(ctx context.Context, ids []blob.ChunkID) error {
	if !s.initialized {
		return chunk.ErrStoreNotInitialized
	}

	var failed []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.DeleteChunk(ctx, id); err != nil {
			failed = append(failed, id.String())
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d chunks: %s",
			len(failed), len(ids), strings.Join(failed, ", "))
	}
	return nil
}

// ListChunks walks the fan-out tree and returns every stored ChunkID.
//
// Files that do not parse as a ChunkID (leftover temp files) are skipped.
func (s *FSChunkStore) ListChunks(ctx context.Context) ([]blob.ChunkID, error) {
	if !s.initialized {
		return nil, chunk.ErrStoreNotInitialized
	}

	var ids []blob.ChunkID
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		id, perr := blob.ParseChunkID(d.Name())
		if perr != nil {
			return nil
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return ids, nil
}

// Stats walks the tree accumulating chunk count and total size.
func (s *FSChunkStore) Stats(ctx context.Context) (*chunk.Stats, error) {
	if !s.initialized {
		return nil, chunk.ErrStoreNotInitialized
	}

	var count, used uint64
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		if _, perr := blob.ParseChunkID(d.Name()); perr != nil {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		count++
		used += uint64(info.Size())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute chunk store stats: %w", err)
	}

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
