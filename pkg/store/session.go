package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"sync"
	"time"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/meta"
)

// sessionState tracks the write session lifecycle. Transitions are
// Open -> Completed and Open -> Aborted only; both are terminal.
type sessionState int

const (
	sessionOpen sessionState = iota
	sessionCompleted
	sessionAborted
)

// WriteSession accumulates appended bytes and re-segments them into
// fixed-size chunks.
//
// A session owns its buffer and pending chunk list exclusively; nothing is
// written to storage until Complete. Appends of arbitrary size are
// concatenated and cut into chunks of exactly the store's chunk size, with
// the final chunk allowed to be shorter. The whole-content SHA-256 is
// computed incrementally during append, so Complete never re-reads the
// accumulated bytes.
//
// A failed Complete burns the session's ContentID: the caller opens a new
// session rather than retrying, since identifiers are never reused.
//
// Thread Safety:
// Safe for concurrent use, though a session is typically driven by one
// goroutine. Chunks are finalized strictly in append order.
type WriteSession struct {
	store     *Store
	id        blob.ContentID
	extension string
	mimeType  string
	startedAt time.Time

	mu      sync.Mutex
	state   sessionState
	buf     []byte
	pending []pendingChunk
	hasher  hash.Hash
	bytes   uint64
	chunks  uint32
}

// pendingChunk is a finalized chunk waiting for Complete.
type pendingChunk struct {
	id   blob.ChunkID
	data []byte
}

// Progress is a point-in-time snapshot of session counters.
type Progress struct {
	// ContentID is the handle this session will resolve to.
	ContentID blob.ContentID

	// BytesWritten is the total number of bytes appended so far, including
	// bytes still sitting in the unfinalized trailing buffer.
	BytesWritten uint64

	// ChunksWritten is the number of finalized chunks.
	ChunksWritten uint32

	// Elapsed is the time since the session was opened.
	Elapsed time.Duration

	// BytesPerSecond is the average append throughput.
	BytesPerSecond float64
}

// WriteOptions carries optional caller-supplied content metadata.
type WriteOptions struct {
	Extension string
	MimeType  string
}

// WriteResult describes a completed write.
type WriteResult struct {
	// ID is the handle referring to the stored content.
	ID blob.ContentID

	// Hash is the SHA-256 of the full content.
	Hash blob.ContentHash

	// Size is the content length in bytes.
	Size uint64

	// ChunkCount is the number of chunks backing the content.
	ChunkCount uint32

	// WasDeduplicated is true when identical content was already stored:
	// this write created a new handle but no new chunk or hash rows.
	WasDeduplicated bool

	Extension string
	MimeType  string
}

// BeginWrite opens a write session and issues its ContentID.
//
// The identifier is assigned before any content byte is known and is not
// reusable: if the session is aborted or its Complete fails, the identifier
// is simply never linked to content.
func (s *Store) BeginWrite(ctx context.Context, opts WriteOptions) (*WriteSession, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	return &WriteSession{
		store:     s,
		id:        s.gen.NewContentID(),
		extension: opts.Extension,
		mimeType:  opts.MimeType,
		startedAt: time.Now(),
		buf:       make([]byte, 0, s.chunkSize),
		hasher:    sha256.New(),
	}, nil
}

// ID returns the ContentID issued for this session.
func (session *WriteSession) ID() blob.ContentID {
	return session.id
}

// Append adds bytes to the session, finalizing a chunk each time the
// internal buffer fills. A single call may finalize zero, one or many
// chunks. Appending zero bytes is a no-op.
//
// Returns ErrSessionClosed after Complete or Abort. On error the session
// is left unmodified.
func (session *WriteSession) Append(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if err := session.checkOpenLocked(); err != nil {
		return err
	}

	session.appendLocked(data)
	return nil
}

// AppendFrom streams from r until io.EOF, returning the number of bytes
// appended. Bytes consumed before a read error are retained: the content
// hash already covers them and the session stays open, so the caller may
// resume or abort.
func (session *WriteSession) AppendFrom(ctx context.Context, r io.Reader) (int64, error) {
	buf := make([]byte, session.store.chunkSize)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			session.mu.Lock()
			if serr := session.checkOpenLocked(); serr != nil {
				session.mu.Unlock()
				return total, serr
			}
			session.appendLocked(buf[:n])
			session.mu.Unlock()
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("failed to read append stream: %w", err)
		}
	}
}

// appendLocked copies data into the buffer, cutting full chunks as the
// buffer reaches the configured chunk size. Caller holds session.mu.
func (session *WriteSession) appendLocked(data []byte) {
	session.hasher.Write(data)
	session.bytes += uint64(len(data))

	chunkSize := session.store.chunkSize
	for len(data) > 0 {
		room := chunkSize - len(session.buf)
		if room > len(data) {
			room = len(data)
		}
		session.buf = append(session.buf, data[:room]...)
		data = data[room:]

		if len(session.buf) == chunkSize {
			session.finalizeChunkLocked()
		}
	}
}

// finalizeChunkLocked seals the current buffer as a chunk and resets it.
// Caller holds session.mu and guarantees the buffer is non-empty.
func (session *WriteSession) finalizeChunkLocked() {
	data := make([]byte, len(session.buf))
	copy(data, session.buf)

	session.pending = append(session.pending, pendingChunk{
		id:   blob.NewChunkID(data),
		data: data,
	})
	session.chunks++
	session.buf = session.buf[:0]
}

// Progress returns a snapshot of the session counters. Pure read, no side
// effects; callable at any time, including after termination.
func (session *WriteSession) Progress() Progress {
	session.mu.Lock()
	defer session.mu.Unlock()

	elapsed := time.Since(session.startedAt)
	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(session.bytes) / secs
	}

	// Finalized chunks are counted separately from the pending list, which
	// is drained on completion: a post-Complete snapshot keeps its totals.
	return Progress{
		ContentID:      session.id,
		BytesWritten:   session.bytes,
		ChunksWritten:  session.chunks,
		Elapsed:        elapsed,
		BytesPerSecond: rate,
	}
}

// Abort terminates the session and discards its buffered data. Nothing was
// written to storage, so there is nothing to undo. Idempotent on an already
// aborted session; returns ErrSessionClosed after Complete.
func (session *WriteSession) Abort() error {
	session.mu.Lock()
	defer session.mu.Unlock()

	switch session.state {
	case sessionAborted:
		return nil
	case sessionCompleted:
		return ErrSessionClosed
	}

	session.state = sessionAborted
	session.buf = nil
	session.pending = nil
	return nil
}

// Complete finalizes the trailing buffer and runs the completion
// transaction:
//
//  1. Chunk bytes are written to chunk storage first, idempotently, so a
//     pre-existing chunk (even from unrelated content) is left untouched.
//  2. The hash row and its chunk list are inserted atomically if absent.
//     Identical content already stored means this write is a dedup hit:
//     no chunk or hash rows are written, only a new handle row.
//  3. The handle row is inserted last, so no reader ever resolves a handle
//     to incomplete backing data.
//
// The session terminates whether or not Complete succeeds. On failure the
// metadata holds no handle row for this ContentID; chunk bytes or hash rows
// already written are reclaimable by the maintenance sweep.
func (session *WriteSession) Complete(ctx context.Context) (*WriteResult, error) {
	session.mu.Lock()

	if err := session.checkOpenLocked(); err != nil {
		session.mu.Unlock()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		session.mu.Unlock()
		return nil, err
	}

	if len(session.buf) > 0 {
		session.finalizeChunkLocked()
	}
	session.state = sessionCompleted

	pending := session.pending
	size := session.bytes
	hash, err := blob.ContentHashFromBytes(session.hasher.Sum(nil))
	session.pending = nil
	session.buf = nil
	session.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to finalize content hash: %w", err)
	}

	store := session.store
	if err := store.checkOpen(ctx); err != nil {
		return nil, err
	}

	deduplicated, err := store.commitContentHash(ctx, hash, size, pending)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := meta.ContentRecord{
		ID:             session.id,
		Hash:           hash,
		Size:           size,
		ChunkCount:     uint32(len(pending)),
		Extension:      session.extension,
		MimeType:       session.mimeType,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if err := store.meta.PutContent(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store content %s: %w", session.id, err)
	}

	return &WriteResult{
		ID:              session.id,
		Hash:            hash,
		Size:            size,
		ChunkCount:      uint32(len(pending)),
		WasDeduplicated: deduplicated,
		Extension:       session.extension,
		MimeType:        session.mimeType,
	}, nil
}

// commitContentHash makes the content value durable: chunk bytes first,
// then the hash row plus chunk list in one metadata transaction. Returns
// true when the value was already stored and nothing was written.
//
// Two sessions racing on the same hash both succeed: chunk writes are
// idempotent and the insert-if-absent picks exactly one winner; the loser
// reports a dedup hit.
func (s *Store) commitContentHash(ctx context.Context, hash blob.ContentHash, size uint64, pending []pendingChunk) (bool, error) {
	_, err := s.meta.GetContentHash(ctx, hash)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, meta.ErrNotFound) {
		return false, fmt.Errorf("failed to look up content hash %s: %w", hash, err)
	}

	chunks := make([]meta.ChunkRecord, len(pending))
	for i, c := range pending {
		if err := s.chunks.WriteChunk(ctx, c.id, c.data); err != nil {
			return false, fmt.Errorf("failed to write chunk %d of %s: %w", i, hash, err)
		}
		chunks[i] = meta.ChunkRecord{
			Index:   uint32(i),
			ChunkID: c.id,
			Size:    uint32(len(c.data)),
		}
	}

	inserted, err := s.meta.PutContentHashIfAbsent(ctx, meta.ContentHashRecord{
		Hash:       hash,
		Size:       size,
		ChunkCount: uint32(len(pending)),
		CreatedAt:  time.Now().UTC(),
	}, chunks)
	if err != nil {
		return false, fmt.Errorf("failed to store content hash %s: %w", hash, err)
	}

	return !inserted, nil
}

// checkOpenLocked returns ErrSessionClosed if the session has terminated.
// Caller holds session.mu.
func (session *WriteSession) checkOpenLocked() error {
	if session.state != sessionOpen {
		return ErrSessionClosed
	}
	return nil
}
