package chunk

import "errors"

// Sentinel errors shared by all chunk store implementations. Callers check
// them with errors.Is; implementations wrap them with context:
//
//	return nil, fmt.Errorf("chunk %s: %w", id, chunk.ErrChunkNotFound)

var (
	// ErrChunkNotFound indicates the requested chunk does not exist.
	//
	// Returned by ReadChunk. Exists and DeleteChunk never return it — a
	// missing chunk is (false, nil) and a successful no-op respectively.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrStoreNotInitialized indicates an operation ran before Initialize.
	//
	// Only backends with mandatory setup (filesystem base directory, S3
	// bucket check) return it; the memory backend is always ready.
	ErrStoreNotInitialized = errors.New("chunk store not initialized")
)
