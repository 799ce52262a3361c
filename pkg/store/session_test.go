package store

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/chunk"
	chunktesting "github.com/marmos91/dittostore/pkg/chunk/testing"
)

func TestSession_AppendFrom(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	session, err := f.store.BeginWrite(ctx, WriteOptions{})
	require.NoError(t, err)

	data := "streamed through a reader, longer than one chunk"
	n, err := session.AppendFrom(ctx, strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	result, err := session.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), result.Size)

	got, err := f.store.ReadAll(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte(data), got)
}

func TestSession_Progress(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	session, err := f.store.BeginWrite(ctx, WriteOptions{})
	require.NoError(t, err)

	p := session.Progress()
	assert.Equal(t, session.ID(), p.ContentID)
	assert.Equal(t, uint64(0), p.BytesWritten)
	assert.Equal(t, uint32(0), p.ChunksWritten)

	require.NoError(t, session.Append(ctx, []byte("ABCDEF")))

	p = session.Progress()
	assert.Equal(t, uint64(6), p.BytesWritten)
	assert.Equal(t, uint32(1), p.ChunksWritten, "one full chunk finalized, two bytes buffered")
	assert.Greater(t, p.Elapsed, time.Duration(0))

	// Progress is a pure read: counters are unchanged by observing them.
	assert.Equal(t, p.BytesWritten, session.Progress().BytesWritten)

	require.NoError(t, session.Abort())
}

func TestSession_ProgressAfterComplete(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	session, err := f.store.BeginWrite(ctx, WriteOptions{})
	require.NoError(t, err)

	require.NoError(t, session.Append(ctx, []byte("ABCDEFGHI")))

	result, err := session.Complete(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(3), result.ChunkCount)

	// The snapshot keeps its totals after termination.
	p := session.Progress()
	assert.Equal(t, uint64(9), p.BytesWritten)
	assert.Equal(t, uint32(3), p.ChunksWritten)
}

func TestSession_AbortNeverWritesChunks(t *testing.T) {
	f, wrapped := newFixtureWith(t, 4, func(inner chunk.Store) chunk.Store {
		return chunktesting.NewRecordingStore(inner)
	})
	recording := wrapped.(*chunktesting.RecordingStore)
	ctx := context.Background()

	session, err := f.store.BeginWrite(ctx, WriteOptions{})
	require.NoError(t, err)

	// Enough data to finalize several chunks in memory.
	require.NoError(t, session.Append(ctx, bytes.Repeat([]byte("x"), 40)))
	require.NoError(t, session.Abort())

	assert.Empty(t, recording.Writes(), "abort must never touch chunk storage")

	stats, err := f.meta.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.ContentCount)
	assert.Equal(t, uint64(0), stats.HashCount)
}

func TestSession_TerminalStates(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	t.Run("AfterComplete", func(t *testing.T) {
		session, err := f.store.BeginWrite(ctx, WriteOptions{})
		require.NoError(t, err)
		_, err = session.Complete(ctx)
		require.NoError(t, err)

		assert.ErrorIs(t, session.Append(ctx, []byte("late")), ErrSessionClosed)
		_, err = session.Complete(ctx)
		assert.ErrorIs(t, err, ErrSessionClosed)
		assert.ErrorIs(t, session.Abort(), ErrSessionClosed)
	})

	t.Run("AfterAbort", func(t *testing.T) {
		session, err := f.store.BeginWrite(ctx, WriteOptions{})
		require.NoError(t, err)
		require.NoError(t, session.Abort())

		assert.ErrorIs(t, session.Append(ctx, []byte("late")), ErrSessionClosed)
		_, err = session.Complete(ctx)
		assert.ErrorIs(t, err, ErrSessionClosed)
		assert.NoError(t, session.Abort(), "abort is idempotent")
	})
}

func TestSession_ConcurrentSameContentCompletions(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	data := []byte("raced by many sessions at once")

	const writers = 8
	results := make([]*WriteResult, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			result, err := f.store.WriteBytes(ctx, data, WriteOptions{})
			assert.NoError(t, err)
			results[slot] = result
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	for _, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, results[0].Hash, result.Hash)
		seen[result.ID.String()] = struct{}{}
	}
	assert.Len(t, seen, writers, "every session keeps its own handle")

	// All handles resolve to the same bytes.
	for _, result := range results {
		got, err := f.store.ReadAll(ctx, result.ID)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}

	stats, err := f.meta.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.HashCount)
}

func TestSession_CrossContentChunkSharing(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	// Both values contain the chunk "ABCD"; it is stored once.
	_, err := f.store.WriteBytes(ctx, []byte("ABCDxyz"), WriteOptions{})
	require.NoError(t, err)
	_, err = f.store.WriteBytes(ctx, []byte("ABCDqrs"), WriteOptions{})
	require.NoError(t, err)

	stats, err := f.chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.ChunkCount)
}
