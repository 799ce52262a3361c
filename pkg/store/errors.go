package store

import "errors"

var (
	// ErrNotFound is returned when a ContentID has no stored content.
	ErrNotFound = errors.New("content not found")

	// ErrSessionClosed is returned when a write session is used after
	// Complete or Abort.
	ErrSessionClosed = errors.New("write session is closed")

	// ErrStoreClosed is returned when the store is used after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidChunkSize is returned when the configured chunk size is
	// not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)
