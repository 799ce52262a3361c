package blob

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContentID_Format(t *testing.T) {
	id := NewContentID()

	s := id.String()
	assert.Len(t, s, 24)
	assert.Equal(t, strings.ToLower(s), s, "external form must be lowercase hex")

	parsed, err := ParseContentID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestNewContentID_TimestampComponent(t *testing.T) {
	before := time.Now().Truncate(time.Second)
	id := NewContentID()
	after := time.Now()

	ts := id.Timestamp()
	assert.False(t, ts.Before(before), "timestamp %v before %v", ts, before)
	assert.False(t, ts.After(after.Add(time.Second)))
}

func TestGenerator_Uniqueness(t *testing.T) {
	gen, err := NewGenerator()
	require.NoError(t, err)

	const n = 10000
	seen := make(map[ContentID]struct{}, n)
	for i := 0; i < n; i++ {
		id := gen.NewContentID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s after %d generations", id, i)
		seen[id] = struct{}{}
	}
}

func TestGenerator_ConcurrentUniqueness(t *testing.T) {
	gen, err := NewGenerator()
	require.NoError(t, err)

	const workers = 8
	const perWorker = 1000

	results := make([][]ContentID, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids := make([]ContentID, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, gen.NewContentID())
			}
			results[w] = ids
		}(w)
	}
	wg.Wait()

	seen := make(map[ContentID]struct{}, workers*perWorker)
	for _, ids := range results {
		for _, id := range ids {
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %s across goroutines", id)
			seen[id] = struct{}{}
		}
	}
}

func TestGenerator_CounterWraps(t *testing.T) {
	gen, err := NewGenerator()
	require.NoError(t, err)
	gen.counter.Store(0xFFFFFF)

	now := time.Now()
	first := gen.newContentIDAt(now)
	second := gen.newContentIDAt(now)

	// 0xFFFFFF + 1 wraps to 0 in the low 24 bits.
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, first.Bytes()[9:12])
	assert.Equal(t, []byte{0x00, 0x00, 0x01}, second.Bytes()[9:12])
}

func TestContentID_Ordering(t *testing.T) {
	gen, err := NewGenerator()
	require.NoError(t, err)

	earlier := gen.newContentIDAt(time.Unix(1000, 0))
	later := gen.newContentIDAt(time.Unix(2000, 0))

	assert.Equal(t, -1, earlier.Compare(later))
	assert.Equal(t, 1, later.Compare(earlier))
	assert.Equal(t, 0, earlier.Compare(earlier))
}

func TestParseContentID_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "abcdef"},
		{"too long", strings.Repeat("a", 25)},
		{"non-hex", strings.Repeat("a", 23) + "g"},
		{"uppercase", strings.Repeat("A", 24)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseContentID(tc.input)
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func TestContentIDFromBytes(t *testing.T) {
	raw := make([]byte, ContentIDSize)
	for i := range raw {
		raw[i] = byte(i)
	}

	id, err := ContentIDFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, id.Bytes())

	_, err = ContentIDFromBytes(raw[:11])
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestContentID_IsZero(t *testing.T) {
	assert.True(t, ContentID{}.IsZero())
	assert.False(t, NewContentID().IsZero())
}
