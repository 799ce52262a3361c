package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
	"github.com/marmos91/dittostore/pkg/chunk/fs"
	chunktesting "github.com/marmos91/dittostore/pkg/chunk/testing"
)

func TestFSChunkStore_Contract(t *testing.T) {
	suite := &chunktesting.StoreTestSuite{
		NewStore: func(t *testing.T) chunk.Store {
			store := fs.NewFSChunkStore(t.TempDir())
			require.NoError(t, store.Initialize(context.Background()))
			return store
		},
	}
	suite.Run(t)
}

func TestFSChunkStore_RequiresInitialize(t *testing.T) {
	store := fs.NewFSChunkStore(t.TempDir())

	id := blob.NewChunkID([]byte("data"))
	err := store.WriteChunk(context.Background(), id, []byte("data"))
	assert.ErrorIs(t, err, chunk.ErrStoreNotInitialized)
}

func TestFSChunkStore_FanOutLayout(t *testing.T) {
	base := t.TempDir()
	store := fs.NewFSChunkStore(base)
	require.NoError(t, store.Initialize(context.Background()))

	data := []byte("fan-out me")
	id := blob.NewChunkID(data)
	require.NoError(t, store.WriteChunk(context.Background(), id, data))

	hexID := id.String()
	path := filepath.Join(base, hexID[:2], hexID)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSChunkStore_ListSkipsForeignFiles(t *testing.T) {
	base := t.TempDir()
	store := fs.NewFSChunkStore(base)
	require.NoError(t, store.Initialize(context.Background()))

	data := []byte("real chunk")
	id := blob.NewChunkID(data)
	require.NoError(t, store.WriteChunk(context.Background(), id, data))

	// A leftover temp file must not surface in listings.
	require.NoError(t, os.WriteFile(filepath.Join(base, "stray.tmp"), []byte("junk"), 0o644))

	ids, err := store.ListChunks(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, id, ids[0])
}
