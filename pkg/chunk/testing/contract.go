package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
)

// RunReadWriteTests executes the read/write contract tests.
func (suite *StoreTestSuite) RunReadWriteTests(t *testing.T) {
	t.Run("ReadChunk_NotFound", suite.testReadChunkNotFound)
	t.Run("WriteChunk_RoundTrip", suite.testWriteChunkRoundTrip)
	t.Run("WriteChunk_Idempotent", suite.testWriteChunkIdempotent)
	t.Run("WriteChunk_Empty", suite.testWriteChunkEmpty)
	t.Run("Exists", suite.testExists)
	t.Run("Initialize_Idempotent", suite.testInitializeIdempotent)
}

// RunDeleteTests executes the deletion contract tests.
func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("DeleteChunk_Existing", suite.testDeleteChunkExisting)
	t.Run("DeleteChunk_Idempotent", suite.testDeleteChunkIdempotent)
	t.Run("DeleteChunks_Bulk", suite.testDeleteChunksBulk)
	t.Run("DeleteChunks_Empty", suite.testDeleteChunksEmpty)
}

// RunListStatsTests executes the listing and statistics contract tests.
func (suite *StoreTestSuite) RunListStatsTests(t *testing.T) {
	t.Run("ListChunks_Empty", suite.testListChunksEmpty)
	t.Run("ListChunks_Multiple", suite.testListChunksMultiple)
	t.Run("Stats", suite.testStats)
}

func (suite *StoreTestSuite) testReadChunkNotFound(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.ReadChunk(testContext(), blob.NewChunkID([]byte("missing")))
	assert.ErrorIs(t, err, chunk.ErrChunkNotFound)
}

func (suite *StoreTestSuite) testWriteChunkRoundTrip(t *testing.T) {
	store := suite.NewStore(t)

	data := []byte("chunk payload")
	id := blob.NewChunkID(data)

	require.NoError(t, store.WriteChunk(testContext(), id, data))

	got, err := store.ReadChunk(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func (suite *StoreTestSuite) testWriteChunkIdempotent(t *testing.T) {
	store := suite.NewStore(t)

	data := []byte("written twice")
	id := blob.NewChunkID(data)

	require.NoError(t, store.WriteChunk(testContext(), id, data))
	require.NoError(t, store.WriteChunk(testContext(), id, data))

	got, err := store.ReadChunk(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	stats, err := store.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.ChunkCount)
}

func (suite *StoreTestSuite) testWriteChunkEmpty(t *testing.T) {
	store := suite.NewStore(t)

	// A zero-length chunk is legal storage-wise even if the engine never
	// produces one; the store must round-trip it.
	id := blob.NewChunkID(nil)
	require.NoError(t, store.WriteChunk(testContext(), id, nil))

	got, err := store.ReadChunk(testContext(), id)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore(t)

	data := []byte("exists check")
	id := blob.NewChunkID(data)

	ok, err := store.Exists(testContext(), id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.WriteChunk(testContext(), id, data))

	ok, err = store.Exists(testContext(), id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func (suite *StoreTestSuite) testInitializeIdempotent(t *testing.T) {
	store := suite.NewStore(t)

	// NewStore already initialized once; a second call must succeed.
	require.NoError(t, store.Initialize(testContext()))
}

func (suite *StoreTestSuite) testDeleteChunkExisting(t *testing.T) {
	store := suite.NewStore(t)

	data := []byte("to delete")
	id := blob.NewChunkID(data)
	require.NoError(t, store.WriteChunk(testContext(), id, data))

	require.NoError(t, store.DeleteChunk(testContext(), id))

	ok, err := store.Exists(testContext(), id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func (suite *StoreTestSuite) testDeleteChunkIdempotent(t *testing.T) {
	store := suite.NewStore(t)

	id := blob.NewChunkID([]byte("never written"))
	assert.NoError(t, store.DeleteChunk(testContext(), id))
}

func (suite *StoreTestSuite) testDeleteChunksBulk(t *testing.T) {
	store := suite.NewStore(t)

	var ids []blob.ChunkID
	for _, payload := range []string{"one", "two", "three"} {
		data := []byte(payload)
		id := blob.NewChunkID(data)
		require.NoError(t, store.WriteChunk(testContext(), id, data))
		ids = append(ids, id)
	}

	// Include a never-written id: non-existent entries are not errors.
	ids = append(ids, blob.NewChunkID([]byte("phantom")))

	require.NoError(t, store.DeleteChunks(testContext(), ids))

	for _, id := range ids {
		ok, err := store.Exists(testContext(), id)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func (suite *StoreTestSuite) testDeleteChunksEmpty(t *testing.T) {
	store := suite.NewStore(t)
	assert.NoError(t, store.DeleteChunks(testContext(), nil))
}

func (suite *StoreTestSuite) testListChunksEmpty(t *testing.T) {
	store := suite.NewStore(t)

	ids, err := store.ListChunks(testContext())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func (suite *StoreTestSuite) testListChunksMultiple(t *testing.T) {
	store := suite.NewStore(t)

	want := make(map[blob.ChunkID]struct{})
	for _, payload := range []string{"alpha", "beta", "gamma"} {
		data := []byte(payload)
		id := blob.NewChunkID(data)
		require.NoError(t, store.WriteChunk(testContext(), id, data))
		want[id] = struct{}{}
	}

	ids, err := store.ListChunks(testContext())
	require.NoError(t, err)
	require.Len(t, ids, len(want))
	for _, id := range ids {
		_, ok := want[id]
		assert.True(t, ok, "unexpected chunk %s in listing", id)
	}
}

func (suite *StoreTestSuite) testStats(t *testing.T) {
	store := suite.NewStore(t)

	stats, err := store.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.ChunkCount)

	payloads := [][]byte{[]byte("aaaa"), []byte("bbbbbbbb")}
	var total uint64
	for _, data := range payloads {
		require.NoError(t, store.WriteChunk(testContext(), blob.NewChunkID(data), data))
		total += uint64(len(data))
	}

	stats, err = store.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payloads)), stats.ChunkCount)
	assert.Equal(t, total, stats.UsedBytes)
	assert.Equal(t, total/uint64(len(payloads)), stats.AverageChunkBytes)
}
