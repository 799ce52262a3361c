package testing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/meta"
)

// RunContentTests executes the handle-row contract tests.
func (suite *StoreTestSuite) RunContentTests(t *testing.T) {
	t.Run("PutContent_RoundTrip", suite.testPutContentRoundTrip)
	t.Run("PutContent_Duplicate", suite.testPutContentDuplicate)
	t.Run("GetContent_NotFound", suite.testGetContentNotFound)
	t.Run("TouchContent", suite.testTouchContent)
	t.Run("TouchContent_NotFound", suite.testTouchContentNotFound)
	t.Run("DeleteContent", suite.testDeleteContent)
	t.Run("CountContentByHash", suite.testCountContentByHash)
}

// RunContentHashTests executes the hash-row and chunk-list contract tests.
func (suite *StoreTestSuite) RunContentHashTests(t *testing.T) {
	t.Run("PutIfAbsent_Inserts", suite.testPutIfAbsentInserts)
	t.Run("PutIfAbsent_Duplicate", suite.testPutIfAbsentDuplicate)
	t.Run("PutIfAbsent_Concurrent", suite.testPutIfAbsentConcurrent)
	t.Run("GetChunks_Ordered", suite.testGetChunksOrdered)
	t.Run("GetChunks_Empty", suite.testGetChunksEmpty)
	t.Run("GetChunks_NotFound", suite.testGetChunksNotFound)
	t.Run("DeleteContentHash", suite.testDeleteContentHash)
	t.Run("DeleteContentHash_Unknown", suite.testDeleteContentHashUnknown)
}

// RunChunkRefTests executes the chunk reference query contract tests.
func (suite *StoreTestSuite) RunChunkRefTests(t *testing.T) {
	t.Run("CountChunkRefs_Shared", suite.testCountChunkRefsShared)
	t.Run("ListChunkRefs_Distinct", suite.testListChunkRefsDistinct)
	t.Run("ListContentHashes", suite.testListContentHashes)
}

// RunStatsTests executes the aggregate statistics contract tests.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	t.Run("Stats_Empty", suite.testStatsEmpty)
	t.Run("Stats_DedupAware", suite.testStatsDedupAware)
}

func (suite *StoreTestSuite) testPutContentRoundTrip(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(distinctPayload("roundtrip", 0))
	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	rec := contentRecord(hash)
	rec.Extension = "txt"
	rec.MimeType = "text/plain"
	require.NoError(t, store.PutContent(testContext(), rec))

	got, err := store.GetContent(testContext(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Hash, got.Hash)
	assert.Equal(t, rec.Size, got.Size)
	assert.Equal(t, rec.ChunkCount, got.ChunkCount)
	assert.Equal(t, "txt", got.Extension)
	assert.Equal(t, "text/plain", got.MimeType)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func (suite *StoreTestSuite) testPutContentDuplicate(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(distinctPayload("duplicate", 0))
	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	rec := contentRecord(hash)
	require.NoError(t, store.PutContent(testContext(), rec))

	err = store.PutContent(testContext(), rec)
	assert.ErrorIs(t, err, meta.ErrAlreadyExists)
}

func (suite *StoreTestSuite) testGetContentNotFound(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.GetContent(testContext(), blob.NewContentID())
	assert.ErrorIs(t, err, meta.ErrNotFound)
}

func (suite *StoreTestSuite) testTouchContent(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(distinctPayload("touch", 0))
	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	rec := contentRecord(hash)
	require.NoError(t, store.PutContent(testContext(), rec))

	later := rec.CreatedAt.Add(time.Hour)
	require.NoError(t, store.TouchContent(testContext(), rec.ID, later))

	got, err := store.GetContent(testContext(), rec.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(got.LastAccessedAt))
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func (suite *StoreTestSuite) testTouchContentNotFound(t *testing.T) {
	store := suite.NewStore(t)

	err := store.TouchContent(testContext(), blob.NewContentID(), time.Now())
	assert.ErrorIs(t, err, meta.ErrNotFound)
}

func (suite *StoreTestSuite) testDeleteContent(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(distinctPayload("delete", 0))
	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	rec := contentRecord(hash)
	require.NoError(t, store.PutContent(testContext(), rec))

	deleted, err := store.DeleteContent(testContext(), rec.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.GetContent(testContext(), rec.ID)
	assert.ErrorIs(t, err, meta.ErrNotFound)

	// Deleting again reports absence, not an error.
	deleted, err = store.DeleteContent(testContext(), rec.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func (suite *StoreTestSuite) testCountContentByHash(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(distinctPayload("refcount", 0))
	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	n, err := store.CountContentByHash(testContext(), hash.Hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	recs := []meta.ContentRecord{contentRecord(hash), contentRecord(hash), contentRecord(hash)}
	for _, rec := range recs {
		require.NoError(t, store.PutContent(testContext(), rec))
	}

	n, err = store.CountContentByHash(testContext(), hash.Hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	_, err = store.DeleteContent(testContext(), recs[1].ID)
	require.NoError(t, err)

	n, err = store.CountContentByHash(testContext(), hash.Hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func (suite *StoreTestSuite) testPutIfAbsentInserts(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(
		distinctPayload("insert", 0),
		distinctPayload("insert", 1),
	)

	inserted, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := store.GetContentHash(testContext(), hash.Hash)
	require.NoError(t, err)
	assert.Equal(t, hash.Hash, got.Hash)
	assert.Equal(t, hash.Size, got.Size)
	assert.Equal(t, hash.ChunkCount, got.ChunkCount)
}

func (suite *StoreTestSuite) testPutIfAbsentDuplicate(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(distinctPayload("dup-hash", 0))

	inserted, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func (suite *StoreTestSuite) testPutIfAbsentConcurrent(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(distinctPayload("race", 0))

	const writers = 8
	results := make([]bool, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			inserted, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
			assert.NoError(t, err)
			results[slot] = inserted
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, inserted := range results {
		if inserted {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one writer must observe the insert")
}

func (suite *StoreTestSuite) testGetChunksOrdered(t *testing.T) {
	store := suite.NewStore(t)

	payloads := make([][]byte, 0, 300)
	for i := 0; i < 300; i++ {
		payloads = append(payloads, distinctPayload("ordered", i))
	}
	hash, chunks := contentHashRecord(payloads...)

	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	got, err := store.GetChunks(testContext(), hash.Hash)
	require.NoError(t, err)
	require.Len(t, got, len(chunks))
	for i, c := range got {
		assert.Equal(t, uint32(i), c.Index)
		assert.Equal(t, chunks[i].ChunkID, c.ChunkID)
		assert.Equal(t, chunks[i].Size, c.Size)
	}
}

func (suite *StoreTestSuite) testGetChunksEmpty(t *testing.T) {
	store := suite.NewStore(t)

	// Empty content has a hash row with zero chunks.
	hash, chunks := contentHashRecord()
	require.Empty(t, chunks)

	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	got, err := store.GetChunks(testContext(), hash.Hash)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func (suite *StoreTestSuite) testGetChunksNotFound(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.GetChunks(testContext(), blob.NewContentHash([]byte("nowhere")))
	assert.ErrorIs(t, err, meta.ErrNotFound)
}

func (suite *StoreTestSuite) testDeleteContentHash(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(
		distinctPayload("del-hash", 0),
		distinctPayload("del-hash", 1),
		distinctPayload("del-hash", 2),
	)
	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	ids, err := store.DeleteContentHash(testContext(), hash.Hash)
	require.NoError(t, err)
	require.Len(t, ids, len(chunks))
	for i, id := range ids {
		assert.Equal(t, chunks[i].ChunkID, id)
	}

	_, err = store.GetContentHash(testContext(), hash.Hash)
	assert.ErrorIs(t, err, meta.ErrNotFound)
	_, err = store.GetChunks(testContext(), hash.Hash)
	assert.ErrorIs(t, err, meta.ErrNotFound)

	refs, err := store.ListChunkRefs(testContext())
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func (suite *StoreTestSuite) testDeleteContentHashUnknown(t *testing.T) {
	store := suite.NewStore(t)

	ids, err := store.DeleteContentHash(testContext(), blob.NewContentHash([]byte("unknown")))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func (suite *StoreTestSuite) testCountChunkRefsShared(t *testing.T) {
	store := suite.NewStore(t)

	shared := distinctPayload("shared-chunk", 0)
	sharedID := blob.NewChunkID(shared)

	hashA, chunksA := contentHashRecord(shared, distinctPayload("only-a", 0))
	hashB, chunksB := contentHashRecord(distinctPayload("only-b", 0), shared)

	_, err := store.PutContentHashIfAbsent(testContext(), hashA, chunksA)
	require.NoError(t, err)
	_, err = store.PutContentHashIfAbsent(testContext(), hashB, chunksB)
	require.NoError(t, err)

	n, err := store.CountChunkRefs(testContext(), sharedID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	_, err = store.DeleteContentHash(testContext(), hashA.Hash)
	require.NoError(t, err)

	n, err = store.CountChunkRefs(testContext(), sharedID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	n, err = store.CountChunkRefs(testContext(), blob.NewChunkID([]byte("unreferenced")))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func (suite *StoreTestSuite) testListChunkRefsDistinct(t *testing.T) {
	store := suite.NewStore(t)

	shared := distinctPayload("list-shared", 0)
	hashA, chunksA := contentHashRecord(shared, distinctPayload("list-a", 0))
	hashB, chunksB := contentHashRecord(shared, distinctPayload("list-b", 0))

	_, err := store.PutContentHashIfAbsent(testContext(), hashA, chunksA)
	require.NoError(t, err)
	_, err = store.PutContentHashIfAbsent(testContext(), hashB, chunksB)
	require.NoError(t, err)

	refs, err := store.ListChunkRefs(testContext())
	require.NoError(t, err)

	// Three distinct chunks; the shared one appears once.
	require.Len(t, refs, 3)
	seen := make(map[blob.ChunkID]struct{}, len(refs))
	for _, id := range refs {
		_, dup := seen[id]
		assert.False(t, dup, "chunk %s listed twice", id)
		seen[id] = struct{}{}
	}
	_, ok := seen[blob.NewChunkID(shared)]
	assert.True(t, ok)
}

func (suite *StoreTestSuite) testListContentHashes(t *testing.T) {
	store := suite.NewStore(t)

	hashes, err := store.ListContentHashes(testContext())
	require.NoError(t, err)
	assert.Empty(t, hashes)

	want := make(map[blob.ContentHash]struct{})
	for i := 0; i < 3; i++ {
		hash, chunks := contentHashRecord(distinctPayload("list-hash", i))
		_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
		require.NoError(t, err)
		want[hash.Hash] = struct{}{}
	}

	hashes, err = store.ListContentHashes(testContext())
	require.NoError(t, err)
	require.Len(t, hashes, len(want))
	for _, h := range hashes {
		_, ok := want[h]
		assert.True(t, ok, "unexpected hash %s in listing", h)
	}
}

func (suite *StoreTestSuite) testStatsEmpty(t *testing.T) {
	store := suite.NewStore(t)

	stats, err := store.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.ContentCount)
	assert.Equal(t, uint64(0), stats.HashCount)
	assert.Equal(t, uint64(0), stats.LogicalBytes)
	assert.Equal(t, uint64(0), stats.UniqueBytes)
}

func (suite *StoreTestSuite) testStatsDedupAware(t *testing.T) {
	store := suite.NewStore(t)

	hash, chunks := contentHashRecord(distinctPayload("stats", 0))
	_, err := store.PutContentHashIfAbsent(testContext(), hash, chunks)
	require.NoError(t, err)

	// Two handles share one value: logical bytes double, unique bytes do not.
	require.NoError(t, store.PutContent(testContext(), contentRecord(hash)))
	require.NoError(t, store.PutContent(testContext(), contentRecord(hash)))

	stats, err := store.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.ContentCount)
	assert.Equal(t, uint64(1), stats.HashCount)
	assert.Equal(t, 2*hash.Size, stats.LogicalBytes)
	assert.Equal(t, hash.Size, stats.UniqueBytes)
}
