package store

import (
	"context"
	"fmt"
	"io"
)

// Write stores everything r yields as one content value and returns the
// completed result. Equivalent to BeginWrite, AppendFrom, Complete.
//
// The session is aborted if the stream fails, so a failed Write leaves no
// open session behind.
func (s *Store) Write(ctx context.Context, r io.Reader, opts WriteOptions) (*WriteResult, error) {
	session, err := s.BeginWrite(ctx, opts)
	if err != nil {
		return nil, err
	}

	if _, err := session.AppendFrom(ctx, r); err != nil {
		_ = session.Abort()
		return nil, fmt.Errorf("failed to append content: %w", err)
	}

	return session.Complete(ctx)
}

// WriteBytes stores a byte slice as one content value.
func (s *Store) WriteBytes(ctx context.Context, data []byte, opts WriteOptions) (*WriteResult, error) {
	session, err := s.BeginWrite(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := session.Append(ctx, data); err != nil {
		_ = session.Abort()
		return nil, err
	}

	return session.Complete(ctx)
}
