// Package testing provides a reusable contract test suite for meta.Store
// implementations.
//
// The suite tests the interface contract, not implementation details, so it
// runs unchanged against every backend (memory, BadgerDB):
//
//	func TestBadgerMetadataStore(t *testing.T) {
//	    suite := &metatesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) meta.Store {
//	            s, err := badger.NewBadgerMetadataStore(context.Background(), badger.Config{InMemory: true})
//	            require.NoError(t, err)
//	            t.Cleanup(func() { s.Close() })
//	            return s
//	        },
//	    }
//	    suite.Run(t)
//	}
package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/meta"
)

// StoreTestSuite is a contract test suite for meta.Store implementations.
type StoreTestSuite struct {
	// NewStore creates a fresh, initialized store for each test, ensuring
	// test isolation.
	NewStore func(t *testing.T) meta.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Content", suite.RunContentTests)
	t.Run("ContentHash", suite.RunContentHashTests)
	t.Run("ChunkRefs", suite.RunChunkRefTests)
	t.Run("Stats", suite.RunStatsTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

// contentHashRecord builds a hash row plus its dense chunk list from raw
// chunk payloads, hashing the concatenation the way the engine does.
func contentHashRecord(payloads ...[]byte) (meta.ContentHashRecord, []meta.ChunkRecord) {
	var whole []byte
	chunks := make([]meta.ChunkRecord, 0, len(payloads))
	for i, data := range payloads {
		whole = append(whole, data...)
		chunks = append(chunks, meta.ChunkRecord{
			Index:   uint32(i),
			ChunkID: blob.NewChunkID(data),
			Size:    uint32(len(data)),
		})
	}
	rec := meta.ContentHashRecord{
		Hash:       blob.NewContentHash(whole),
		Size:       uint64(len(whole)),
		ChunkCount: uint32(len(payloads)),
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	return rec, chunks
}

// contentRecord builds a handle row pointing at a hash row.
func contentRecord(hash meta.ContentHashRecord) meta.ContentRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return meta.ContentRecord{
		ID:             blob.NewContentID(),
		Hash:           hash.Hash,
		Size:           hash.Size,
		ChunkCount:     hash.ChunkCount,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

// distinctPayload returns a payload unique within a test so fixtures never
// collide on hash.
func distinctPayload(label string, n int) []byte {
	return []byte(fmt.Sprintf("%s-%d", label, n))
}
