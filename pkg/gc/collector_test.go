package gc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/blob"
	chunkmemory "github.com/marmos91/dittostore/pkg/chunk/memory"
	"github.com/marmos91/dittostore/pkg/meta"
	metamemory "github.com/marmos91/dittostore/pkg/meta/memory"
	"github.com/marmos91/dittostore/pkg/store"
)

type gcFixture struct {
	store     *store.Store
	chunks    *chunkmemory.MemoryChunkStore
	metaStore *metamemory.MemoryMetadataStore
}

func newGCFixture(t *testing.T) *gcFixture {
	t.Helper()
	ctx := context.Background()

	chunks := chunkmemory.NewMemoryChunkStore()
	require.NoError(t, chunks.Initialize(ctx))
	metaStore := metamemory.NewMemoryMetadataStore()
	require.NoError(t, metaStore.Initialize(ctx))

	s, err := store.New(chunks, metaStore, store.Options{ChunkSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return &gcFixture{store: s, chunks: chunks, metaStore: metaStore}
}

// strandChunk plants a chunk with no metadata reference, the way a crashed
// completion leaves one behind.
func strandChunk(t *testing.T, f *gcFixture, payload []byte) blob.ChunkID {
	t.Helper()
	id := blob.NewChunkID(payload)
	require.NoError(t, f.chunks.WriteChunk(context.Background(), id, payload))
	return id
}

// strandHashRow plants a hash row (with chunk list and backing chunks) that
// no handle references, the way a completion that died before inserting its
// handle row leaves one behind.
func strandHashRow(t *testing.T, f *gcFixture, payload []byte) blob.ContentHash {
	t.Helper()
	ctx := context.Background()

	chunkID := strandChunk(t, f, payload)
	rec := meta.ContentHashRecord{
		Hash:       blob.NewContentHash(payload),
		Size:       uint64(len(payload)),
		ChunkCount: 1,
		// Backdated past the default grace period so the sweep treats
		// the row as stale garbage rather than an in-flight completion.
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	inserted, err := f.metaStore.PutContentHashIfAbsent(ctx, rec, []meta.ChunkRecord{
		{Index: 0, ChunkID: chunkID, Size: uint32(len(payload))},
	})
	require.NoError(t, err)
	require.True(t, inserted)
	return rec.Hash
}

func TestCollector_CleanStoreIsUntouched(t *testing.T) {
	f := newGCFixture(t)
	ctx := context.Background()

	result, err := f.store.WriteBytes(ctx, []byte("still referenced data"), store.WriteOptions{})
	require.NoError(t, err)

	collector := NewCollector(f.metaStore, f.chunks, Config{})
	stats, err := collector.RunNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), stats.OrphanedHashCount)
	assert.Equal(t, uint64(0), stats.OrphanedChunkCount)

	got, err := f.store.ReadAll(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("still referenced data"), got)
}

func TestCollector_ReclaimsStrandedChunks(t *testing.T) {
	f := newGCFixture(t)
	ctx := context.Background()

	live, err := f.store.WriteBytes(ctx, []byte("live content"), store.WriteOptions{})
	require.NoError(t, err)

	stranded := strandChunk(t, f, []byte("stranded chunk bytes"))

	collector := NewCollector(f.metaStore, f.chunks, Config{})
	stats, err := collector.RunNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.OrphanedChunkCount)
	assert.Equal(t, uint64(1), stats.DeletedChunkCount)

	ok, err := f.chunks.Exists(ctx, stranded)
	require.NoError(t, err)
	assert.False(t, ok)

	// Live content survives and still verifies.
	verified, err := f.store.VerifyIntegrity(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestCollector_ReclaimsOrphanHashRows(t *testing.T) {
	f := newGCFixture(t)
	ctx := context.Background()

	hash := strandHashRow(t, f, []byte("orphan hash row"))

	collector := NewCollector(f.metaStore, f.chunks, Config{})
	stats, err := collector.RunNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.OrphanedHashCount)
	assert.Equal(t, uint64(1), stats.DeletedHashCount)
	// Phase 1 freed the hash row's chunks; phase 2 of the same sweep
	// reclaimed them.
	assert.Equal(t, uint64(1), stats.DeletedChunkCount)

	_, err = f.metaStore.GetContentHash(ctx, hash)
	assert.ErrorIs(t, err, meta.ErrNotFound)

	chunkStats, err := f.chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), chunkStats.ChunkCount)
}

// handleRowHook intercepts handle row inserts so a test can interleave work
// into the gap between a completion's hash row commit and its handle row.
type handleRowHook struct {
	meta.Store
	before func()
}

func (h *handleRowHook) PutContent(ctx context.Context, rec meta.ContentRecord) error {
	if h.before != nil {
		h.before()
	}
	return h.Store.PutContent(ctx, rec)
}

func TestCollector_SweepDuringCompletionSparesLiveData(t *testing.T) {
	ctx := context.Background()

	chunks := chunkmemory.NewMemoryChunkStore()
	require.NoError(t, chunks.Initialize(ctx))
	metaStore := metamemory.NewMemoryMetadataStore()
	require.NoError(t, metaStore.Initialize(ctx))

	collector := NewCollector(metaStore, chunks, Config{})

	// A sweep lands after the hash row and chunks are committed but before
	// the handle row: at that instant the hash row has zero handle
	// references, yet the completion is still in flight.
	hooked := &handleRowHook{Store: metaStore}
	var sweepStats *Stats
	hooked.before = func() {
		hooked.before = nil
		stats, err := collector.RunNow(ctx)
		require.NoError(t, err)
		sweepStats = stats
	}

	s, err := store.New(chunks, hooked, store.Options{ChunkSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	result, err := s.WriteBytes(ctx, []byte("ABCDEFGHI"), store.WriteOptions{})
	require.NoError(t, err)

	require.NotNil(t, sweepStats)
	assert.Equal(t, uint64(1), sweepStats.SkippedRecentCount)
	assert.Equal(t, uint64(0), sweepStats.DeletedHashCount)
	assert.Equal(t, uint64(0), sweepStats.DeletedChunkCount)

	got, err := s.ReadAll(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCDEFGHI"), got)

	verified, err := s.VerifyIntegrity(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestCollector_DryRunDeletesNothing(t *testing.T) {
	f := newGCFixture(t)
	ctx := context.Background()

	stranded := strandChunk(t, f, []byte("dry run survivor"))
	strandHashRow(t, f, []byte("dry run hash row"))

	collector := NewCollector(f.metaStore, f.chunks, Config{DryRun: true})
	stats, err := collector.RunNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.OrphanedHashCount)
	assert.NotZero(t, stats.OrphanedChunkCount)
	assert.Equal(t, uint64(0), stats.DeletedHashCount)
	assert.Equal(t, uint64(0), stats.DeletedChunkCount)

	ok, err := f.chunks.Exists(ctx, stranded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCollector_BatchedDeletes(t *testing.T) {
	f := newGCFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		strandChunk(t, f, []byte{byte(i), 0xFF})
	}

	collector := NewCollector(f.metaStore, f.chunks, Config{BatchSize: 10})
	stats, err := collector.RunNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(25), stats.OrphanedChunkCount)
	assert.Equal(t, uint64(25), stats.DeletedChunkCount)

	chunkStats, err := f.chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), chunkStats.ChunkCount)
}

func TestCollector_StartStop(t *testing.T) {
	f := newGCFixture(t)

	collector := NewCollector(f.metaStore, f.chunks, Config{
		Enabled:  true,
		Interval: time.Hour,
	})
	collector.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, collector.Stop(ctx))
}

func TestCollector_DisabledStartIsNoop(t *testing.T) {
	f := newGCFixture(t)

	collector := NewCollector(f.metaStore, f.chunks, Config{Enabled: false})
	collector.Start()
	assert.NoError(t, collector.Stop(context.Background()))
}
