package blob

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// ContentIDSize is the length in bytes of a raw ContentID.
const ContentIDSize = 12

// ContentID is the opaque handle issued for one logical write.
//
// Layout (12 raw bytes, 24 lowercase hex characters external):
//   - bytes 0..3: big-endian Unix timestamp in seconds
//   - bytes 4..8: cryptographically random, fixed per generator
//   - bytes 9..11: big-endian process-wide counter, wraps mod 2^24
//
// Lexicographic ordering over the raw bytes therefore approximates creation
// order. A ContentID is assigned at session creation, before any content
// byte is known, is immutable, and is never reused: a failed completion
// burns its ContentID and the caller opens a new session.
type ContentID [ContentIDSize]byte

// ContentIDFromBytes constructs a ContentID from 12 raw bytes.
//
// Returns ErrInvalidID if the slice is not exactly ContentIDSize bytes.
func ContentIDFromBytes(raw []byte) (ContentID, error) {
	var id ContentID
	if len(raw) != ContentIDSize {
		return id, fmt.Errorf("content id must be %d bytes, got %d: %w", ContentIDSize, len(raw), ErrInvalidID)
	}
	copy(id[:], raw)
	return id, nil
}

// ParseContentID parses a ContentID from its external form: 24 lowercase
// hex characters.
//
// Returns ErrInvalidID on wrong length or non-hex input.
func ParseContentID(s string) (ContentID, error) {
	var id ContentID
	if len(s) != hex.EncodedLen(ContentIDSize) {
		return id, fmt.Errorf("content id must be %d hex characters, got %d: %w", hex.EncodedLen(ContentIDSize), len(s), ErrInvalidID)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return id, fmt.Errorf("content id contains non-hex character %q: %w", c, ErrInvalidID)
		}
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("content id: %v: %w", err, ErrInvalidID)
	}
	return id, nil
}

// String returns the external form: 24 lowercase hex characters.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns a copy of the raw 12 bytes.
func (id ContentID) Bytes() []byte {
	out := make([]byte, ContentIDSize)
	copy(out, id[:])
	return out
}

// Timestamp returns the creation time encoded in the identifier, at one
// second granularity.
func (id ContentID) Timestamp() time.Time {
	secs := binary.BigEndian.Uint32(id[0:4])
	return time.Unix(int64(secs), 0).UTC()
}

// Compare returns -1, 0 or +1 comparing raw bytes. Because of the layout
// this approximates creation order.
func (id ContentID) Compare(other ContentID) int {
	return bytes.Compare(id[:], other[:])
}

// IsZero reports whether the identifier is the all-zero value.
func (id ContentID) IsZero() bool {
	return id == ContentID{}
}

// ============================================================================
// Generator
// ============================================================================

// Generator produces ContentIDs.
//
// The generator owns the process-wide mutable state behind ContentID
// creation: a 5-byte random component drawn once at construction, and a
// 24-bit counter seeded randomly and incremented atomically on every call.
// The random component bounds cross-process collision probability; the
// counter guarantees uniqueness within one process even when many
// identifiers are generated inside the same timestamp second.
//
// Thread Safety: safe for unlimited concurrent callers.
//
// Tests that need deterministic identifiers construct their own Generator
// instead of reaching for the package default.
type Generator struct {
	random  [5]byte
	counter atomic.Uint32
}

// NewGenerator creates a Generator with a fresh random component and a
// randomly seeded counter.
func NewGenerator() (*Generator, error) {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to seed content id generator: %w", err)
	}

	g := &Generator{}
	copy(g.random[:], seed[:5])
	g.counter.Store(binary.BigEndian.Uint32(seed[4:8]) & 0xFFFFFF)
	return g, nil
}

// NewContentID generates a fresh identifier using the current wall clock.
func (g *Generator) NewContentID() ContentID {
	return g.newContentIDAt(time.Now())
}

// newContentIDAt is split out so tests can pin the timestamp component.
func (g *Generator) newContentIDAt(t time.Time) ContentID {
	var id ContentID
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	copy(id[4:9], g.random[:])

	// Counter wraps mod 2^24; only the low three bytes are kept.
	n := g.counter.Add(1)
	id[9] = byte(n >> 16)
	id[10] = byte(n >> 8)
	id[11] = byte(n)
	return id
}

// defaultGenerator backs NewContentID. Initialization cannot fail unless
// the platform's crypto/rand source is broken, which is unrecoverable.
var defaultGenerator = mustNewGenerator()

func mustNewGenerator() *Generator {
	g, err := NewGenerator()
	if err != nil {
		panic(err)
	}
	return g
}

// NewContentID generates a fresh identifier from the process-wide default
// generator.
func NewContentID() ContentID {
	return defaultGenerator.NewContentID()
}

// DefaultGenerator returns the process-wide default generator.
func DefaultGenerator() *Generator {
	return defaultGenerator
}
