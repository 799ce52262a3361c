package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/chunk"
	"github.com/marmos91/dittostore/pkg/meta"
)

// Reader is a seekable byte stream over a handle's ordered chunks.
//
// Reads are chunk-granular and lazy: at most one chunk is held in memory,
// fetched on demand when the read position enters it. Seeking only moves
// the logical offset and drops the cached chunk; no I/O happens until the
// next Read. Reads crossing chunk boundaries are served transparently.
//
// Offsets are relative to the reader's window: a full-content reader spans
// the whole value, a bounded reader from ReadRange spans a sub-range and
// reports io.EOF at the window's end.
//
// Thread Safety: not safe for concurrent use; each goroutine opens its own
// Reader.
type Reader struct {
	ctx       context.Context
	chunks    chunkFetcher
	list      []meta.ChunkRecord
	chunkSize int64

	base int64 // absolute offset of window start
	size int64 // window length
	pos  int64 // logical offset within the window

	cachedIndex int64
	cached      []byte
	closed      bool
}

// chunkFetcher is the slice of chunk.Store the reader needs.
type chunkFetcher interface {
	ReadChunk(ctx context.Context, id blob.ChunkID) ([]byte, error)
}

// Read opens a seekable reader over the handle's full content. Returns
// ErrNotFound for an unknown ContentID.
//
// The context is captured for the reader's lifetime: chunk fetches
// triggered by later Read calls use it.
func (s *Store) Read(ctx context.Context, id blob.ContentID) (*Reader, error) {
	return s.ReadRange(ctx, id, 0, -1)
}

// ReadRange opens a seekable reader over a sub-range of the handle's
// content. A negative length means "to the end". Ranges beyond the end of
// content are clamped; a fully out-of-range offset yields an empty reader,
// not an error.
func (s *Store) ReadRange(ctx context.Context, id blob.ContentID, offset, length int64) (*Reader, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("negative read offset %d", offset)
	}

	rec, err := s.meta.GetContent(ctx, id)
	if errors.Is(err, meta.ErrNotFound) {
		return nil, fmt.Errorf("content %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content %s: %w", id, err)
	}

	list, err := s.meta.GetChunks(ctx, rec.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk list of %s: %w", id, err)
	}

	contentSize := int64(rec.Size)
	if offset > contentSize {
		offset = contentSize
	}
	window := contentSize - offset
	if length >= 0 && length < window {
		window = length
	}

	return &Reader{
		ctx:         ctx,
		chunks:      s.chunks,
		list:        list,
		chunkSize:   int64(s.chunkSize),
		base:        offset,
		size:        window,
		cachedIndex: -1,
	}, nil
}

// ReadAll returns the handle's full content as one byte slice.
func (s *Store) ReadAll(ctx context.Context, id blob.ContentID) ([]byte, error) {
	r, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data := make([]byte, 0, r.Size())
	buf := make([]byte, s.chunkSize)
	for {
		n, err := r.Read(buf)
		data = append(data, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Size returns the window length in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// Read serves bytes from the current position, fetching chunks on demand
// and crossing chunk boundaries as needed. At or past the window end it
// returns 0, io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}
	if r.pos >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	for total < len(p) && r.pos < r.size {
		abs := r.base + r.pos
		index := abs / r.chunkSize

		if index != r.cachedIndex {
			if err := r.fetch(index); err != nil {
				if total > 0 {
					return total, nil
				}
				return 0, err
			}
		}

		within := abs - index*r.chunkSize
		avail := int64(len(r.cached)) - within
		if avail <= 0 {
			// The chunk is shorter than the metadata says. Surface it as
			// corruption rather than stalling.
			err := fmt.Errorf("chunk %d truncated: have %d bytes, need offset %d: %w",
				index, len(r.cached), within, chunk.ErrChunkNotFound)
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if remaining := r.size - r.pos; avail > remaining {
			avail = remaining
		}
		if want := int64(len(p) - total); avail > want {
			avail = want
		}

		copy(p[total:], r.cached[within:within+avail])
		total += int(avail)
		r.pos += avail
	}

	return total, nil
}

// fetch loads one chunk into the cache.
func (r *Reader) fetch(index int64) error {
	if index < 0 || index >= int64(len(r.list)) {
		return fmt.Errorf("chunk index %d out of range [0,%d)", index, len(r.list))
	}

	data, err := r.chunks.ReadChunk(r.ctx, r.list[index].ChunkID)
	if err != nil {
		return fmt.Errorf("failed to read chunk %d: %w", index, err)
	}

	r.cachedIndex = index
	r.cached = data
	return nil
}

// Seek moves the logical offset and drops the cached chunk. Seeking past
// the window end is allowed; the next Read returns io.EOF.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = r.pos + offset
	case io.SeekEnd:
		pos = r.size + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position %d", pos)
	}

	r.pos = pos
	r.cachedIndex = -1
	r.cached = nil
	return pos, nil
}

// Close releases the cached chunk. Further calls on the reader fail.
func (r *Reader) Close() error {
	r.closed = true
	r.cached = nil
	return nil
}
