package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
	chunktesting "github.com/marmos91/dittostore/pkg/chunk/testing"
)

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t, 4)

	deleted, err := f.store.Delete(context.Background(), blob.NewContentID())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDelete_LastReferenceReclaimsChunks(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, []byte("ABCDEFGHI"), WriteOptions{})
	require.NoError(t, err)

	deleted, err := f.store.Delete(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, err := f.store.Exists(ctx, result.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Everything is gone: handle, hash row, chunk rows, physical chunks.
	metaStats, err := f.meta.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), metaStats.ContentCount)
	assert.Equal(t, uint64(0), metaStats.HashCount)

	chunkStats, err := f.chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), chunkStats.ChunkCount)
}

func TestDelete_SharedHashKeepsChunks(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	data := []byte("shared by two handles")
	first, err := f.store.WriteBytes(ctx, data, WriteOptions{})
	require.NoError(t, err)
	second, err := f.store.WriteBytes(ctx, data, WriteOptions{})
	require.NoError(t, err)
	require.True(t, second.WasDeduplicated)

	// Deleting one handle must not touch the shared value.
	deleted, err := f.store.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := f.store.ReadAll(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := f.store.VerifyIntegrity(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Deleting the survivor reclaims the value.
	deleted, err = f.store.Delete(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	chunkStats, err := f.chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), chunkStats.ChunkCount)
}

func TestDelete_CrossContentSharedChunksSurvive(t *testing.T) {
	f, wrapped := newFixtureWith(t, 4, func(inner chunk.Store) chunk.Store {
		return chunktesting.NewRecordingStore(inner)
	})
	recording := wrapped.(*chunktesting.RecordingStore)
	ctx := context.Background()

	// Distinct values sharing the chunk "ABCD".
	first, err := f.store.WriteBytes(ctx, []byte("ABCDxyz"), WriteOptions{})
	require.NoError(t, err)
	second, err := f.store.WriteBytes(ctx, []byte("ABCDqrs"), WriteOptions{})
	require.NoError(t, err)

	deleted, err := f.store.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Only the chunk exclusive to the first value was deleted.
	shared := blob.NewChunkID([]byte("ABCD"))
	deletes := recording.Deletes()
	require.Len(t, deletes, 1)
	assert.Equal(t, blob.NewChunkID([]byte("xyz")), deletes[0])
	assert.NotContains(t, deletes, shared)

	got, err := f.store.ReadAll(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCDqrs"), got)

	ok, err := f.store.VerifyIntegrity(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete_Twice(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, []byte("delete twice"), WriteOptions{})
	require.NoError(t, err)

	deleted, err := f.store.Delete(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.store.Delete(ctx, result.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
