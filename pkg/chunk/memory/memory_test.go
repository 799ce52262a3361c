package memory_test

import (
	"testing"

	"github.com/marmos91/dittostore/pkg/chunk"
	"github.com/marmos91/dittostore/pkg/chunk/memory"
	chunktesting "github.com/marmos91/dittostore/pkg/chunk/testing"
)

func TestMemoryChunkStore_Contract(t *testing.T) {
	suite := &chunktesting.StoreTestSuite{
		NewStore: func(t *testing.T) chunk.Store {
			return memory.NewMemoryChunkStore()
		},
	}
	suite.Run(t)
}
