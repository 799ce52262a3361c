// Package chunk defines the chunk storage capability consumed by the
// dittostore engine, plus the statistics type shared by all backends.
//
// A chunk store is a flat content-addressed blob map: raw bytes keyed by
// blob.ChunkID. It holds no knowledge of ContentID or ContentHash — which
// content values reference a chunk, and when a chunk becomes garbage, is
// decided entirely by the metadata layer. This separation keeps the
// chunking, deduplication and garbage collection logic storage-agnostic:
// any backend satisfying this interface (in-memory map, filesystem keyed by
// hex digest, S3 bucket, embedded KV) can be swapped in without touching
// the engine.
package chunk

import (
	"context"

	"github.com/marmos91/dittostore/pkg/blob"
)

// Store is the chunk storage capability.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Because a ChunkID is the SHA-256 of the bytes it names, concurrent writes
// of the same ChunkID always carry identical data, so last-write-wins races
// are harmless by construction.
//
// Idempotency:
// WriteChunk and DeleteChunk are idempotent. Writing a ChunkID that already
// exists leaves the stored bytes untouched — this is what yields incidental
// cross-content chunk deduplication, and what makes completion races safe.
type Store interface {
	// Initialize prepares the backend for use (creates directories, verifies
	// bucket access, opens handles). Idempotent: calling it on an already
	// initialized store succeeds.
	Initialize(ctx context.Context) error

	// WriteChunk stores the bytes for the given ChunkID.
	//
	// If the ChunkID already exists — even written by an unrelated content
	// value — the call is a no-op and the existing bytes are left untouched.
	// Implementations must not read back or compare the payload; the
	// content-addressed key makes equality a given.
	WriteChunk(ctx context.Context, id blob.ChunkID, data []byte) error

	// ReadChunk returns the bytes for the given ChunkID.
	//
	// Returns ErrChunkNotFound (wrapped) if the chunk does not exist.
	// The returned slice is owned by the caller.
	ReadChunk(ctx context.Context, id blob.ChunkID) ([]byte, error)

	// Exists reports whether the chunk is physically present.
	//
	// A missing chunk is (false, nil), never an error: existence checks are
	// how garbage collection and tests observe the store.
	Exists(ctx context.Context, id blob.ChunkID) (bool, error)

	// DeleteChunk removes one chunk. Idempotent: deleting a non-existent
	// chunk succeeds.
	DeleteChunk(ctx context.Context, id blob.ChunkID) error

	// DeleteChunks removes a batch of chunks.
	//
	// Backends with transactional semantics (memory) delete the batch
	// atomically. Backends without (filesystem, S3) delete best-effort and
	// return an aggregate error if any deletion failed; chunks that survive
	// a partial failure are unreferenced garbage, reclaimable by a later
	// sweep, never a correctness problem.
	DeleteChunks(ctx context.Context, ids []blob.ChunkID) error

	// ListChunks returns the ChunkIDs of every chunk physically present.
	//
	// Used by the maintenance sweeper to diff physical chunks against
	// metadata references. For very large stores this is an expensive full
	// scan; implementations should check the context periodically.
	ListChunks(ctx context.Context) ([]blob.ChunkID, error)

	// Stats returns storage statistics for monitoring and tests.
	Stats(ctx context.Context) (*Stats, error)
}

// Stats contains statistics about a chunk store.
//
// Backends that cannot compute a field cheaply set it to zero.
type Stats struct {
	// ChunkCount is the number of chunks physically stored.
	ChunkCount uint64

	// UsedBytes is the total size of all stored chunks.
	UsedBytes uint64

	// AverageChunkBytes is UsedBytes / ChunkCount, 0 when the store is empty.
	AverageChunkBytes uint64
}
