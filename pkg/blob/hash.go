package blob

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DigestSize is the length in bytes of a SHA-256 digest.
const DigestSize = sha256.Size

// ============================================================================
// ChunkID
// ============================================================================

// ChunkID is the SHA-256 digest of a single chunk's bytes.
//
// A ChunkID fully determines the chunk content: two chunks with the same
// ChunkID carry identical bytes, which is what makes chunk-level
// deduplication safe. The chunk store is keyed exclusively by ChunkID and
// has no knowledge of the content values that reference a chunk.
//
// Ordering between ChunkIDs is a raw byte comparison. It carries no meaning
// beyond providing a total order for indexing.
type ChunkID [DigestSize]byte

// NewChunkID computes the ChunkID for the given chunk bytes.
func NewChunkID(data []byte) ChunkID {
	return ChunkID(sha256.Sum256(data))
}

// ChunkIDFromBytes constructs a ChunkID from a raw 32-byte digest.
//
// Returns ErrInvalidID if the slice is not exactly DigestSize bytes.
func ChunkIDFromBytes(digest []byte) (ChunkID, error) {
	var id ChunkID
	if len(digest) != DigestSize {
		return id, fmt.Errorf("chunk id must be %d bytes, got %d: %w", DigestSize, len(digest), ErrInvalidID)
	}
	copy(id[:], digest)
	return id, nil
}

// ParseChunkID parses a ChunkID from its external form: 64 lowercase hex
// characters.
//
// Returns ErrInvalidID on wrong length or non-hex input.
func ParseChunkID(s string) (ChunkID, error) {
	var id ChunkID
	if err := parseDigest(id[:], s, "chunk id"); err != nil {
		return ChunkID{}, err
	}
	return id, nil
}

// String returns the external form: 64 lowercase hex characters.
func (id ChunkID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns a copy of the raw 32-byte digest.
func (id ChunkID) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, id[:])
	return out
}

// Compare returns -1, 0 or +1 comparing raw digest bytes.
func (id ChunkID) Compare(other ChunkID) int {
	return bytes.Compare(id[:], other[:])
}

// ============================================================================
// ContentHash
// ============================================================================

// ContentHash is the SHA-256 digest of the full concatenated byte stream of
// one content value.
//
// One ContentHash identifies one distinct content value regardless of how
// many content handles reference it. It shares the external encoding of
// ChunkID (64 lowercase hex characters) but lives in a separate namespace:
// a ContentHash keys metadata rows, never chunk bytes.
type ContentHash [DigestSize]byte

// NewContentHash computes the ContentHash for a complete byte stream held
// in memory. Streamed writes compute the same digest incrementally.
func NewContentHash(data []byte) ContentHash {
	return ContentHash(sha256.Sum256(data))
}

// ContentHashFromBytes constructs a ContentHash from a raw 32-byte digest.
//
// Returns ErrInvalidID if the slice is not exactly DigestSize bytes.
func ContentHashFromBytes(digest []byte) (ContentHash, error) {
	var h ContentHash
	if len(digest) != DigestSize {
		return h, fmt.Errorf("content hash must be %d bytes, got %d: %w", DigestSize, len(digest), ErrInvalidID)
	}
	copy(h[:], digest)
	return h, nil
}

// ParseContentHash parses a ContentHash from its external form: 64 lowercase
// hex characters.
//
// Returns ErrInvalidID on wrong length or non-hex input.
func ParseContentHash(s string) (ContentHash, error) {
	var h ContentHash
	if err := parseDigest(h[:], s, "content hash"); err != nil {
		return ContentHash{}, err
	}
	return h, nil
}

// String returns the external form: 64 lowercase hex characters.
func (h ContentHash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the raw 32-byte digest.
func (h ContentHash) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, h[:])
	return out
}

// Compare returns -1, 0 or +1 comparing raw digest bytes.
func (h ContentHash) Compare(other ContentHash) int {
	return bytes.Compare(h[:], other[:])
}

// parseDigest decodes a 64-character lowercase hex string into dst.
//
// hex.DecodeString accepts uppercase input, so the lowercase requirement is
// enforced explicitly: identifiers have exactly one external encoding.
func parseDigest(dst []byte, s string, what string) error {
	if len(s) != hex.EncodedLen(DigestSize) {
		return fmt.Errorf("%s must be %d hex characters, got %d: %w", what, hex.EncodedLen(DigestSize), len(s), ErrInvalidID)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%s contains non-hex character %q: %w", what, c, ErrInvalidID)
		}
	}
	if _, err := hex.Decode(dst, []byte(s)); err != nil {
		return fmt.Errorf("%s: %v: %w", what, err, ErrInvalidID)
	}
	return nil
}
