package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/meta"
)

// PutContent inserts the handle row and its "x:" index entry in one
// transaction.
func (s *BadgerMetadataStore) PutContent(ctx context.Context, rec meta.ContentRecord) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		key := keyContent(rec.ID)

		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("content %s: %w", rec.ID, meta.ErrAlreadyExists)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check content %s: %w", rec.ID, err)
		}

		value, err := encodeContent(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(key, value); err != nil {
			return fmt.Errorf("failed to store content %s: %w", rec.ID, err)
		}
		if err := txn.Set(keyHashIndex(rec.Hash, rec.ID), nil); err != nil {
			return fmt.Errorf("failed to index content %s: %w", rec.ID, err)
		}
		return nil
	})
}

// GetContent returns the handle row.
func (s *BadgerMetadataStore) GetContent(ctx context.Context, id blob.ContentID) (*meta.ContentRecord, error) {
	var rec *meta.ContentRecord

	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(keyContent(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("content %s: %w", id, meta.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get content %s: %w", id, err)
		}

		return item.Value(func(val []byte) error {
			rec, err = decodeContent(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// TouchContent rewrites the handle row with an updated LastAccessedAt.
func (s *BadgerMetadataStore) TouchContent(ctx context.Context, id blob.ContentID, at time.Time) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		key := keyContent(id)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("content %s: %w", id, meta.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get content %s: %w", id, err)
		}

		var rec *meta.ContentRecord
		if err := item.Value(func(val []byte) error {
			rec, err = decodeContent(val)
			return err
		}); err != nil {
			return err
		}

		rec.LastAccessedAt = at
		value, err := encodeContent(*rec)
		if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
}

// DeleteContent removes the handle row and its "x:" index entry.
func (s *BadgerMetadataStore) DeleteContent(ctx context.Context, id blob.ContentID) (bool, error) {
	deleted := false

	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = false
		key := keyContent(id)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get content %s: %w", id, err)
		}

		var rec *meta.ContentRecord
		if err := item.Value(func(val []byte) error {
			rec, err = decodeContent(val)
			return err
		}); err != nil {
			return err
		}

		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("failed to delete content %s: %w", id, err)
		}
		if err := txn.Delete(keyHashIndex(rec.Hash, id)); err != nil {
			return fmt.Errorf("failed to unindex content %s: %w", id, err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// CountContentByHash counts "x:" index entries under the hash prefix.
func (s *BadgerMetadataStore) CountContentByHash(ctx context.Context, hash blob.ContentHash) (uint64, error) {
	var n uint64

	err := s.view(ctx, func(txn *badger.Txn) error {
		n = countPrefix(txn, keyHashIndexPrefix(hash))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
