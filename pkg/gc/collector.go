// Package gc provides background garbage collection for orphaned store data.
//
// The inline delete cascade reclaims everything when it runs to completion,
// but a crash or cancellation can strand two kinds of garbage:
//   - content hash rows no handle references (a completion that failed
//     before inserting its handle row, or a delete interrupted mid-cascade)
//   - physical chunks no chunk list references (chunk bytes are written
//     before metadata, so a failed completion leaves them behind)
//
// Both are safe garbage, never dangling references; the collector scans for
// them periodically and deletes them in batches.
//
// A hash row with zero handle references is not necessarily garbage: a
// completion in flight commits its hash row before its handle row, and a
// sweep landing in that gap would reap live data. The collector therefore
// only reaps hash rows older than a configurable grace period.
package gc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
	"github.com/marmos91/dittostore/pkg/meta"
)

// Collector performs periodic garbage collection on a store's backends.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	metaStore  meta.Store
	chunkStore chunk.Store
	config     Config
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether background collection is active (default: false)
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration `mapstructure:"interval"`

	// BatchSize is how many orphaned chunks to delete per batch (default: 1000)
	// S3 supports up to 1000 objects per DeleteObjects call
	BatchSize int `mapstructure:"batch_size"`

	// DryRun mode logs what would be deleted without actually deleting
	// (default: false). Useful for validation.
	DryRun bool `mapstructure:"dry_run"`

	// GracePeriod is the minimum age of a hash row before an unreferenced
	// one is treated as orphaned (default: 1h). Rows younger than this may
	// belong to a completion whose handle row has not landed yet.
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// NewCollector creates a new garbage collector.
//
// The collector is initialized but not started. Call Start() to begin
// background collection, or RunNow() for a one-off sweep.
func NewCollector(metaStore meta.Store, chunkStore chunk.Store, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 1000
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = time.Hour
	}

	return &Collector{
		metaStore:  metaStore,
		chunkStore: chunkStore,
		config:     config,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins background garbage collection.
//
// This starts a goroutine that runs a sweep at the configured interval
// until Stop() is called. A no-op when collection is disabled.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	logger.Info("Starting garbage collector: interval=%s batch_size=%d dry_run=%v",
		c.config.Interval, c.config.BatchSize, c.config.DryRun)

	go c.worker()
}

// Stop stops the garbage collector and waits for it to finish any
// in-progress sweep, or until the context expires.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	logger.Info("Stopping garbage collector...")
	close(c.stopCh)

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate sweep, blocking until it completes or the
// context is cancelled. Useful for startup cleanup, admin triggers and
// tests.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

// worker is the background goroutine that runs periodic sweeps.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	logger.Info("Garbage collector worker started")

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			logger.Info("Garbage collector worker stopping...")
			return
		}
	}
}

// collect performs one sweep:
//
//  1. Delete content hash rows (and their chunk lists) that no handle
//     references. Running this phase first turns their chunks into phase 2
//     candidates within the same sweep.
//  2. Compute orphaned chunks = chunks in chunk storage minus chunks
//     referenced by any remaining chunk list, and batch-delete them.
//
// Metadata always goes before chunk bytes, matching the inline delete
// cascade: interrupting a sweep leaves garbage for the next one, never a
// chunk list pointing at deleted bytes.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	if err := c.sweepHashRows(ctx, stats); err != nil {
		stats.EndTime = time.Now()
		return stats, err
	}
	if err := c.sweepChunks(ctx, stats); err != nil {
		stats.EndTime = time.Now()
		return stats, err
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// sweepHashRows deletes content hash rows with zero handle references,
// skipping rows younger than the grace period: an in-flight completion
// commits its hash row before its handle row, and reaping that row would
// leave the handle dangling over deleted backing rows.
func (c *Collector) sweepHashRows(ctx context.Context, stats *Stats) error {
	logger.Debug("GC: Phase 1 - Scanning for unreferenced content hash rows...")

	hashes, err := c.metaStore.ListContentHashes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list content hashes: %w", err)
	}
	stats.HashCount = uint64(len(hashes))

	for _, hash := range hashes {
		if err := ctx.Err(); err != nil {
			return err
		}

		refs, err := c.metaStore.CountContentByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to count references to %s: %w", hash, err)
		}
		if refs > 0 {
			continue
		}

		rec, err := c.metaStore.GetContentHash(ctx, hash)
		if err != nil {
			if errors.Is(err, meta.ErrNotFound) {
				continue
			}
			return fmt.Errorf("failed to load hash row %s: %w", hash, err)
		}
		if age := time.Since(rec.CreatedAt); age < c.config.GracePeriod {
			logger.Debug("GC: Skipping recent hash row %s (age %s)", hash, age)
			stats.SkippedRecentCount++
			continue
		}

		stats.OrphanedHashCount++

		if c.config.DryRun {
			logger.Info("GC: DRY RUN - Would delete hash row %s", hash)
			continue
		}

		if _, err := c.metaStore.DeleteContentHash(ctx, hash); err != nil {
			logger.Warn("GC: Failed to delete hash row %s: %v", hash, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedHashCount++
	}

	logger.Debug("GC: Phase 1 complete - %d hash rows scanned, %d orphaned",
		stats.HashCount, stats.OrphanedHashCount)
	return nil
}

// sweepChunks deletes physical chunks absent from every chunk list.
//
// Existing chunks are listed before references: a chunk written after the
// chunk listing is never a candidate, and one written before it is only
// deleted if its chunk list still has not landed by the reference listing.
func (c *Collector) sweepChunks(ctx context.Context, stats *Stats) error {
	logger.Debug("GC: Phase 2 - Scanning for unreferenced chunks...")

	existing, err := c.chunkStore.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	referenced, err := c.metaStore.ListChunkRefs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list referenced chunks: %w", err)
	}
	stats.ReferencedCount = uint64(len(referenced))

	referencedSet := make(map[blob.ChunkID]struct{}, len(referenced))
	for _, id := range referenced {
		referencedSet[id] = struct{}{}
	}

	orphaned := make([]blob.ChunkID, 0)
	for _, id := range existing {
		if _, ok := referencedSet[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	stats.OrphanedChunkCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		logger.Debug("GC: No orphaned chunks found")
		return nil
	}

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - Would delete %d chunks:", len(orphaned))
		for i, id := range orphaned {
			if i >= 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - %s", id)
		}
		return nil
	}

	logger.Debug("GC: Deleting %d orphaned chunks in batches of %d...",
		len(orphaned), c.config.BatchSize)

	for i := 0; i < len(orphaned); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := i + c.config.BatchSize
		if end > len(orphaned) {
			end = len(orphaned)
		}
		batch := orphaned[i:end]

		if err := c.chunkStore.DeleteChunks(ctx, batch); err != nil {
			logger.Warn("GC: Batch delete failed: %v", err)
			stats.FailedCount += uint64(len(batch))
			continue
		}
		stats.DeletedChunkCount += uint64(len(batch))
	}

	logger.Debug("GC: Phase 2 complete - deleted %d chunks, %d failed",
		stats.DeletedChunkCount, stats.FailedCount)
	return nil
}

// Stats contains statistics from one garbage collection sweep.
type Stats struct {
	StartTime time.Time // When the sweep started
	EndTime   time.Time // When the sweep ended

	HashCount          uint64 // Content hash rows scanned
	OrphanedHashCount  uint64 // Hash rows with zero handle references
	DeletedHashCount   uint64 // Hash rows deleted
	SkippedRecentCount uint64 // Unreferenced hash rows inside the grace period

	ReferencedCount    uint64 // Chunks referenced by some chunk list
	ExistingCount      uint64 // Chunks present in chunk storage
	OrphanedChunkCount uint64 // Chunks nothing references
	DeletedChunkCount  uint64 // Chunks deleted

	FailedCount uint64 // Deletions that failed (retried next sweep)
}

// Duration returns the total sweep duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the sweep.
func (s *Stats) Summary() string {
	return fmt.Sprintf(
		"hashes=%d orphaned_hashes=%d deleted_hashes=%d skipped_recent=%d chunks=%d referenced=%d orphaned_chunks=%d deleted_chunks=%d failed=%d duration=%s",
		s.HashCount, s.OrphanedHashCount, s.DeletedHashCount, s.SkippedRecentCount,
		s.ExistingCount, s.ReferencedCount, s.OrphanedChunkCount,
		s.DeletedChunkCount, s.FailedCount, s.Duration())
}
