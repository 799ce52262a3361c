// Package s3 implements a chunk store backed by Amazon S3 or any
// S3-compatible object storage (MinIO, Localstack, Cubbit DS3).
//
// Each chunk is one object whose key is the hex-encoded ChunkID under an
// optional key prefix:
//
//	<prefix>ab/abcdef0123...  (64 hex chars)
//
// The two-character fan-out mirrors the filesystem backend and keeps listing
// by prefix / sharding behavior predictable on S3-compatible stores that
// partition by key prefix.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writers racing on the same ChunkID
// upload identical bytes, so S3's last-write-wins semantics are harmless.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
)

// maxDeleteBatch is the S3 DeleteObjects per-request object limit.
const maxDeleteBatch = 1000

// S3ChunkStore implements chunk.Store on an S3 bucket.
type S3ChunkStore struct {
	client    *awss3.Client
	bucket    string
	keyPrefix string
}

// Config contains configuration for the S3 chunk store.
type Config struct {
	// Client is the configured S3 client.
	Client *awss3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g.
	// "dittostore/chunks/".
	KeyPrefix string
}

// NewS3ChunkStore creates an S3-backed chunk store.
//
// Bucket access is not verified here; Initialize performs the HeadBucket
// check so construction stays cheap and offline-testable.
func NewS3ChunkStore(cfg Config) (*S3ChunkStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	return &S3ChunkStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Initialize verifies the bucket is reachable. Idempotent.
func (s *S3ChunkStore) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

// objectKey returns the object key for a chunk: <prefix><hh>/<64 hex chars>.
func (s *S3ChunkStore) objectKey(id blob.ChunkID) string {
	hexID := id.String()
	return s.keyPrefix + hexID[:2] + "/" + hexID
}

// WriteChunk uploads the chunk unless an object with its key already exists.
//
// The HeadObject-then-Put sequence is not atomic, but a lost race means two
// uploads of identical bytes — the content-addressed key makes overwrites
// indistinguishable from no-ops.
func (s *S3ChunkStore) WriteChunk(ctx context.Context, id blob.ChunkID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.objectKey(id)

	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check chunk %s: %w", id, err)
	}

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to write chunk %s: %w", id, err)
	}
	return nil
}

// ReadChunk downloads the chunk bytes.
func (s *S3ChunkStore) ReadChunk(ctx context.Context, id blob.ChunkID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("chunk %s: %w", id, chunk.ErrChunkNotFound)
		}
		return nil, fmt.Errorf("failed to read chunk %s: %w", id, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to download chunk %s: %w", id, err)
	}
	return data, nil
}

// Exists checks the chunk object with a HeadObject request.
func (s *S3ChunkStore) Exists(ctx context.Context, id blob.ChunkID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check chunk %s: %w", id, err)
	}
	return true, nil
}

// DeleteChunk removes one chunk object. S3 DeleteObject is idempotent.
func (s *S3ChunkStore) DeleteChunk(ctx context.Context, id blob.ChunkID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunk %s: %w", id, err)
	}
	return nil
}

// DeleteChunks removes chunks with batched DeleteObjects requests.
//
// Individual failures are aggregated into one error; successfully deleted
// objects are not rolled back. Surviving chunks are reclaimable garbage.
func (s *S3ChunkStore) DeleteChunks(ctx context.Context, ids []blob.ChunkID) error {
	var failed []string

	for start := 0; start < len(ids); start += maxDeleteBatch {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + maxDeleteBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		objects := make([]types.ObjectIdentifier, 0, len(batch))
		for _, id := range batch {
			objects = append(objects, types.ObjectIdentifier{
				Key: aws.String(s.objectKey(id)),
			})
		}

		result, err := s.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("batch delete failed: %w", err)
		}
		for _, derr := range result.Errors {
			if derr.Key != nil {
				failed = append(failed, *derr.Key)
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d chunks: %s",
			len(failed), len(ids), strings.Join(failed, ", "))
	}
	return nil
}

// ListChunks pages through the bucket and returns every stored ChunkID.
//
// Keys under the prefix that do not parse as ChunkIDs are skipped.
func (s *S3ChunkStore) ListChunks(ctx context.Context) ([]blob.ChunkID, error) {
	var ids []blob.ChunkID

	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			id, perr := blob.ParseChunkID(baseName(*obj.Key))
			if perr != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Stats pages through the bucket accumulating object count and size.
func (s *S3ChunkStore) Stats(ctx context.Context) (*chunk.Stats, error) {
	var count, used uint64

	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compute chunk store stats: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if _, perr := blob.ParseChunkID(baseName(*obj.Key)); perr != nil {
				continue
			}
			count++
			if obj.Size != nil {
				used += uint64(*obj.Size)
			}
		}
	}

	var avg uint64
	if count > 0 {
		avg = used / count
	}
	return &chunk.Stats{
		ChunkCount:        count,
		UsedBytes:         used,
		AverageChunkBytes: avg,
	}, nil
}

// baseName returns the final path segment of an object key.
func baseName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// isNotFound reports whether err is an S3 missing-key / missing-object error.
//
// GetObject returns *types.NoSuchKey; HeadObject returns *types.NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
