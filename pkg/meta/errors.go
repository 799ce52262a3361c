package meta

import "errors"

// Sentinel errors shared by all metadata store implementations. Callers
// check them with errors.Is; implementations wrap them with context.

var (
	// ErrNotFound indicates the requested row does not exist.
	//
	// Returned by GetContent, TouchContent, GetContentHash and GetChunks.
	// DeleteContent reports absence through its boolean instead, so delete
	// is idempotent at the API boundary.
	ErrNotFound = errors.New("metadata not found")

	// ErrAlreadyExists indicates an insert hit an existing primary key.
	//
	// Only PutContent returns it: ContentIDs are unique by construction, so
	// a collision is a caller bug, not a race to tolerate.
	ErrAlreadyExists = errors.New("metadata already exists")

	// ErrStoreClosed indicates an operation ran after Close.
	ErrStoreClosed = errors.New("metadata store closed")
)
