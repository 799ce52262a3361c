package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/meta"
	metatesting "github.com/marmos91/dittostore/pkg/meta/testing"
)

func TestMemoryMetadataStore_Contract(t *testing.T) {
	suite := &metatesting.StoreTestSuite{
		NewStore: func(t *testing.T) meta.Store {
			s := NewMemoryMetadataStore()
			require.NoError(t, s.Initialize(context.Background()))
			return s
		},
	}
	suite.Run(t)
}

func TestMemoryMetadataStore_Closed(t *testing.T) {
	s := NewMemoryMetadataStore()
	require.NoError(t, s.Initialize(context.Background()))
	require.NoError(t, s.Close())

	_, err := s.Stats(context.Background())
	assert.ErrorIs(t, err, meta.ErrStoreClosed)

	err = s.PutContent(context.Background(), meta.ContentRecord{CreatedAt: time.Now()})
	assert.ErrorIs(t, err, meta.ErrStoreClosed)
}
