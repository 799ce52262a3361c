//go:build integration
// +build integration

package s3

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/chunk"
	chunktesting "github.com/marmos91/dittostore/pkg/chunk/testing"
)

// TestS3ChunkStore_Integration runs the chunk store contract suite against a
// real S3-compatible service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/chunk/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3ChunkStore_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	client, err := NewS3Client(ctx, ClientConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	})
	require.NoError(t, err)

	bucket := "dittostore-chunk-test"
	_, err = client.CreateBucket(ctx, &awss3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	require.NoError(t, err)

	suite := &chunktesting.StoreTestSuite{
		NewStore: func(t *testing.T) chunk.Store {
			// A fresh key prefix per test keeps listings isolated without
			// re-creating buckets.
			store, err := NewS3ChunkStore(Config{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: t.Name() + "/",
			})
			require.NoError(t, err)
			require.NoError(t, store.Initialize(ctx))
			return store
		},
	}
	suite.Run(t)
}
