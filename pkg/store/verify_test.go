package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/blob"
)

func TestVerifyIntegrity_Intact(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, []byte("intact content here"), WriteOptions{})
	require.NoError(t, err)

	ok, err := f.store.VerifyIntegrity(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyIntegrity_EmptyContent(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, nil, WriteOptions{})
	require.NoError(t, err)

	ok, err := f.store.VerifyIntegrity(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyIntegrity_NotFound(t *testing.T) {
	f := newFixture(t, 4)

	_, err := f.store.VerifyIntegrity(context.Background(), blob.NewContentID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyIntegrity_CorruptChunk(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, []byte("ABCDEFGHIJKL"), WriteOptions{})
	require.NoError(t, err)

	// Corrupt the middle chunk out-of-band: replace its bytes while keeping
	// its ChunkID, the way silent storage corruption would.
	victim := blob.NewChunkID([]byte("EFGH"))
	require.NoError(t, f.chunks.DeleteChunk(ctx, victim))
	require.NoError(t, f.chunks.WriteChunk(ctx, victim, []byte("EVIL")))

	ok, err := f.store.VerifyIntegrity(ctx, result.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// An unrelated handle still verifies.
	other, err := f.store.WriteBytes(ctx, []byte("untouched"), WriteOptions{})
	require.NoError(t, err)
	ok, err = f.store.VerifyIntegrity(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyIntegrity_MissingChunk(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, []byte("ABCDEFGHIJKL"), WriteOptions{})
	require.NoError(t, err)

	require.NoError(t, f.chunks.DeleteChunk(ctx, blob.NewChunkID([]byte("IJKL"))))

	// Damaged content is a verification outcome, not an error.
	ok, err := f.store.VerifyIntegrity(ctx, result.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
