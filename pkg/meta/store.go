// Package meta defines the transactional metadata store consumed by the
// dittostore engine, together with the three record types it persists.
//
// The metadata layer owns the three coupled relations that make
// deduplication and safe deletion possible:
//
//   - ContentRecord (key: ContentID) — one row per issued handle
//   - ContentHashRecord (key: ContentHash) — one row per distinct content value
//   - ChunkRecord (key: ContentHash + Index) — the ordered chunk list of a value
//
// Chunk bytes themselves live in a chunk.Store; the metadata layer never
// sees them. Any transactional key-indexed engine offering insert-if-absent,
// point lookup, secondary-key lookup/count and delete-by-key can back this
// interface; the repository ships a BadgerDB backend and an in-memory one.
package meta

import (
	"context"
	"time"

	"github.com/marmos91/dittostore/pkg/blob"
)

// ContentRecord is the metadata row for one content handle.
//
// One row exists per issued ContentID. Multiple rows may share a Hash: that
// is exactly what deduplication produces. Size and ChunkCount are copied
// from the content value's ContentHashRecord at completion time so handle
// metadata reads never need a second lookup.
type ContentRecord struct {
	// ID is the handle issued at session creation.
	ID blob.ContentID `json:"id"`

	// Hash identifies the content value the handle resolved to.
	Hash blob.ContentHash `json:"hash"`

	// Size is the total content length in bytes.
	Size uint64 `json:"size"`

	// ChunkCount is the number of chunks backing the content value.
	ChunkCount uint32 `json:"chunk_count"`

	// Extension is optional caller-supplied file extension metadata.
	Extension string `json:"extension,omitempty"`

	// MimeType is optional caller-supplied MIME type metadata.
	MimeType string `json:"mime_type,omitempty"`

	// CreatedAt is when the completion transaction committed.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is mutated on every metadata read of the handle.
	// Equals CreatedAt until the first read.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// ContentHashRecord is the metadata row for one distinct content value,
// independent of how many handles reference it.
type ContentHashRecord struct {
	Hash       blob.ContentHash `json:"hash"`
	Size       uint64           `json:"size"`
	ChunkCount uint32           `json:"chunk_count"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ChunkRecord is one entry of a content value's ordered chunk list.
//
// Indices are dense and 0-based; append order defines concatenation order.
// Every chunk has exactly the store's configured chunk size except the last,
// which may be shorter.
type ChunkRecord struct {
	Index   uint32       `json:"index"`
	ChunkID blob.ChunkID `json:"chunk_id"`
	Size    uint32       `json:"size"`
}

// Stats contains aggregate metadata statistics.
type Stats struct {
	// ContentCount is the number of content handles (ContentRecord rows).
	ContentCount uint64

	// HashCount is the number of distinct content values.
	HashCount uint64

	// LogicalBytes is the sum of sizes over all handles — what callers
	// believe they stored.
	LogicalBytes uint64

	// UniqueBytes is the sum of sizes over distinct content values — what
	// dedup actually keeps.
	UniqueBytes uint64
}

// Store is the transactional metadata capability.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Each method is
// individually atomic; the engine sequences them so that a crash between
// calls leaves only reclaimable garbage, never a dangling reference (see
// the delete cascade in pkg/store).
type Store interface {
	// Initialize prepares the backend (opens the database, creates
	// directories). Idempotent.
	Initialize(ctx context.Context) error

	// Close releases backend resources. The store is unusable afterwards.
	Close() error

	// ================================================================
	// ContentRecord (one row per handle)
	// ================================================================

	// PutContent inserts a new handle row.
	//
	// Returns ErrAlreadyExists if the ContentID is already present —
	// ContentIDs are never reused, so a duplicate insert is a caller bug.
	PutContent(ctx context.Context, rec ContentRecord) error

	// GetContent returns the handle row, or ErrNotFound.
	GetContent(ctx context.Context, id blob.ContentID) (*ContentRecord, error)

	// TouchContent updates LastAccessedAt, or returns ErrNotFound.
	TouchContent(ctx context.Context, id blob.ContentID, at time.Time) error

	// DeleteContent removes the handle row. Returns false if it was absent.
	DeleteContent(ctx context.Context, id blob.ContentID) (bool, error)

	// CountContentByHash counts remaining handle rows referencing a hash.
	CountContentByHash(ctx context.Context, hash blob.ContentHash) (uint64, error)

	// ================================================================
	// ContentHashRecord + ChunkRecord (one set per distinct value)
	// ================================================================

	// PutContentHashIfAbsent atomically inserts the hash row together with
	// its full chunk list, in one transaction.
	//
	// Returns (true, nil) if this call inserted the rows, (false, nil) if
	// the hash was already present; in the latter case nothing is written.
	// Two writers racing on the same hash must both succeed, with exactly
	// one of them observing inserted == true.
	PutContentHashIfAbsent(ctx context.Context, rec ContentHashRecord, chunks []ChunkRecord) (bool, error)

	// GetContentHash returns the hash row, or ErrNotFound.
	GetContentHash(ctx context.Context, hash blob.ContentHash) (*ContentHashRecord, error)

	// GetChunks returns the ordered chunk list for a hash. Empty content
	// yields an empty list; an unknown hash yields ErrNotFound.
	GetChunks(ctx context.Context, hash blob.ContentHash) ([]ChunkRecord, error)

	// DeleteContentHash removes the hash row and its chunk rows in one
	// transaction, returning the ChunkIDs the chunk rows referenced (in
	// index order). Deleting an unknown hash returns an empty list.
	DeleteContentHash(ctx context.Context, hash blob.ContentHash) ([]blob.ChunkID, error)

	// ================================================================
	// Chunk reference queries (for garbage collection)
	// ================================================================

	// CountChunkRefs counts ChunkRecord rows across all hashes that
	// reference the chunk.
	CountChunkRefs(ctx context.Context, id blob.ChunkID) (uint64, error)

	// ListChunkRefs returns the distinct ChunkIDs referenced by any
	// ChunkRecord row. Used by the maintenance sweep to identify physical
	// chunks that nothing references.
	ListChunkRefs(ctx context.Context) ([]blob.ChunkID, error)

	// ListContentHashes returns every ContentHash with a hash row. Used by
	// the maintenance sweep to find hash rows no handle references.
	ListContentHashes(ctx context.Context) ([]blob.ContentHash, error)

	// Stats returns aggregate metadata statistics.
	Stats(ctx context.Context) (*Stats, error)
}
