package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkID_MatchesSHA256(t *testing.T) {
	data := []byte("ABCDEFGHI")
	want := sha256.Sum256(data)

	id := NewChunkID(data)
	assert.Equal(t, want[:], id.Bytes())
	assert.Equal(t, hex.EncodeToString(want[:]), id.String())
}

func TestParseChunkID_RoundTrip(t *testing.T) {
	id := NewChunkID([]byte("some chunk"))

	parsed, err := ParseChunkID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseChunkID_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "abcd"},
		{"too long", strings.Repeat("a", 65)},
		{"non-hex", strings.Repeat("a", 63) + "z"},
		{"uppercase", strings.Repeat("A", 64)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseChunkID(tc.input)
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func TestChunkIDFromBytes_WrongLength(t *testing.T) {
	_, err := ChunkIDFromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = ChunkIDFromBytes(make([]byte, 33))
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestNewContentHash_EmptyStream(t *testing.T) {
	// SHA-256 of the empty string is the hash of empty content.
	want := sha256.Sum256(nil)
	h := NewContentHash(nil)
	assert.Equal(t, want[:], h.Bytes())
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.String())
}

func TestParseContentHash_RoundTrip(t *testing.T) {
	h := NewContentHash([]byte("full content value"))

	parsed, err := ParseContentHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestContentHash_Compare(t *testing.T) {
	a := NewContentHash([]byte("a"))
	b := NewContentHash([]byte("b"))

	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -a.Compare(b), b.Compare(a))
}

func TestChunkIDAndContentHash_DistinctTypes(t *testing.T) {
	// Same bytes hash to the same digest, but the two types stay separate
	// namespaces: conversion requires an explicit round-trip through raw bytes.
	data := []byte("shared bytes")
	id := NewChunkID(data)
	h := NewContentHash(data)
	assert.Equal(t, id.Bytes(), h.Bytes())
	assert.Equal(t, id.String(), h.String())
}
