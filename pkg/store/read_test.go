package store

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
	chunktesting "github.com/marmos91/dittostore/pkg/chunk/testing"
)

func TestRead_NotFound(t *testing.T) {
	f := newFixture(t, 4)

	_, err := f.store.Read(context.Background(), blob.NewContentID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRead_SeekAndRead(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	data := []byte("ABCDEFGHIJKLMNOP") // 4 chunks of 4
	result, err := f.store.WriteBytes(ctx, data, WriteOptions{})
	require.NoError(t, err)

	r, err := f.store.Read(ctx, result.ID)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(16), r.Size())

	// Read across a chunk boundary.
	pos, err := r.Seek(2, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)

	buf := make([]byte, 6)
	n, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte("CDEFGH"), buf)

	// Relative and end-anchored seeks.
	pos, err = r.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	pos, err = r.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(13), pos)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("NOP"), rest)
}

func TestRead_AtAndPastEOF(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, []byte("ABCDEF"), WriteOptions{})
	require.NoError(t, err)

	r, err := f.store.Read(ctx, result.ID)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Seek(6, io.SeekStart)
	require.NoError(t, err)
	n, err := r.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	// Seeking past the end is allowed; the read reports EOF.
	_, err = r.Seek(100, io.SeekStart)
	require.NoError(t, err)
	n, err = r.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = r.Seek(-1, io.SeekStart)
	assert.Error(t, err, "negative positions are rejected")
}

func TestRead_EmptyContent(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, nil, WriteOptions{})
	require.NoError(t, err)

	r, err := f.store.Read(ctx, result.ID)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(0), r.Size())
	n, err := r.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRange(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	data := []byte("ABCDEFGHIJKL")
	result, err := f.store.WriteBytes(ctx, data, WriteOptions{})
	require.NoError(t, err)

	t.Run("Bounded", func(t *testing.T) {
		r, err := f.store.ReadRange(ctx, result.ID, 3, 6)
		require.NoError(t, err)
		defer r.Close()

		assert.Equal(t, int64(6), r.Size())
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("DEFGHI"), got)
	})

	t.Run("ToEnd", func(t *testing.T) {
		r, err := f.store.ReadRange(ctx, result.ID, 10, -1)
		require.NoError(t, err)
		defer r.Close()

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("KL"), got)
	})

	t.Run("ClampedPastEnd", func(t *testing.T) {
		r, err := f.store.ReadRange(ctx, result.ID, 10, 100)
		require.NoError(t, err)
		defer r.Close()

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("KL"), got)
	})

	t.Run("OffsetBeyondEnd", func(t *testing.T) {
		r, err := f.store.ReadRange(ctx, result.ID, 50, 10)
		require.NoError(t, err)
		defer r.Close()

		assert.Equal(t, int64(0), r.Size())
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("SeekWithinWindow", func(t *testing.T) {
		r, err := f.store.ReadRange(ctx, result.ID, 2, 8)
		require.NoError(t, err)
		defer r.Close()

		// Offsets are window-relative.
		_, err = r.Seek(4, io.SeekStart)
		require.NoError(t, err)

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("GHIJ"), got)
	})

	t.Run("NegativeOffset", func(t *testing.T) {
		_, err := f.store.ReadRange(ctx, result.ID, -1, 4)
		assert.Error(t, err)
	})
}

func TestRead_Locality(t *testing.T) {
	f, wrapped := newFixtureWith(t, 4, func(inner chunk.Store) chunk.Store {
		return chunktesting.NewCountingStore(inner)
	})
	counting := wrapped.(*chunktesting.CountingStore)
	ctx := context.Background()

	// 4 chunks: "ABCD" "EFGH" "IJKL" "MNOP".
	result, err := f.store.WriteBytes(ctx, []byte("ABCDEFGHIJKLMNOP"), WriteOptions{})
	require.NoError(t, err)
	counting.ResetReads()

	// A range entirely inside chunk 2 fetches chunk 2 and nothing else.
	r, err := f.store.ReadRange(ctx, result.ID, 9, 2)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("JK"), got)

	assert.Equal(t, 1, counting.TotalReads())
	assert.Equal(t, 1, counting.Reads(blob.NewChunkID([]byte("IJKL"))))
}

func TestRead_ClosedReader(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, []byte("close me"), WriteOptions{})
	require.NoError(t, err)

	r, err := f.store.Read(ctx, result.ID)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.Read(make([]byte, 4))
	assert.Error(t, err)
	_, err = r.Seek(0, io.SeekStart)
	assert.Error(t, err)
}
