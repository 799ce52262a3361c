// Package testing provides a reusable contract test suite for chunk.Store
// implementations, plus instrumented store doubles used by the engine tests.
//
// The suite tests the interface contract, not implementation details, so it
// runs unchanged against every backend (memory, filesystem, S3):
//
//	func TestFSChunkStore(t *testing.T) {
//	    suite := &chunktesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) chunk.Store {
//	            s := fs.NewFSChunkStore(t.TempDir())
//	            require.NoError(t, s.Initialize(context.Background()))
//	            return s
//	        },
//	    }
//	    suite.Run(t)
//	}
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittostore/pkg/chunk"
)

// StoreTestSuite is a contract test suite for chunk.Store implementations.
type StoreTestSuite struct {
	// NewStore creates a fresh, initialized store for each test, ensuring
	// test isolation.
	NewStore func(t *testing.T) chunk.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("ReadWrite", suite.RunReadWriteTests)
	t.Run("Delete", suite.RunDeleteTests)
	t.Run("ListAndStats", suite.RunListStatsTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
