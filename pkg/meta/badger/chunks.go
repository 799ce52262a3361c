package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/meta"
)

// PutContentHashIfAbsent inserts the hash row, the chunk list and the "r:"
// reference index entries in one transaction.
//
// The existence check and the inserts share a serializable transaction, so
// two writers racing on the same hash cannot both insert: the loser either
// observes the winner's row or hits a conflict, retries, and then observes
// it. Exactly one caller sees inserted == true.
func (s *BadgerMetadataStore) PutContentHashIfAbsent(ctx context.Context, rec meta.ContentHashRecord, chunks []meta.ChunkRecord) (bool, error) {
	inserted := false

	err := s.update(ctx, func(txn *badger.Txn) error {
		inserted = false
		key := keyHash(rec.Hash)

		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check content hash %s: %w", rec.Hash, err)
		}

		value, err := encodeHash(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(key, value); err != nil {
			return fmt.Errorf("failed to store content hash %s: %w", rec.Hash, err)
		}

		for _, c := range chunks {
			chunkValue, err := encodeChunk(c)
			if err != nil {
				return err
			}
			if err := txn.Set(keyChunk(rec.Hash, c.Index), chunkValue); err != nil {
				return fmt.Errorf("failed to store chunk %d of %s: %w", c.Index, rec.Hash, err)
			}
			if err := txn.Set(keyChunkRef(c.ChunkID, rec.Hash), nil); err != nil {
				return fmt.Errorf("failed to index chunk ref %s: %w", c.ChunkID, err)
			}
		}

		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// GetContentHash returns the hash row.
func (s *BadgerMetadataStore) GetContentHash(ctx context.Context, hash blob.ContentHash) (*meta.ContentHashRecord, error) {
	var rec *meta.ContentHashRecord

	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(keyHash(hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("content hash %s: %w", hash, meta.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get content hash %s: %w", hash, err)
		}

		return item.Value(func(val []byte) error {
			rec, err = decodeHash(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetChunks returns the ordered chunk list via one prefix scan. Key order
// equals chunk order thanks to the big-endian index suffix.
func (s *BadgerMetadataStore) GetChunks(ctx context.Context, hash blob.ContentHash) ([]meta.ChunkRecord, error) {
	var chunks []meta.ChunkRecord

	err := s.view(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(keyHash(hash)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("content hash %s: %w", hash, meta.ErrNotFound)
		} else if err != nil {
			return fmt.Errorf("failed to get content hash %s: %w", hash, err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyChunkPrefix(hash)

		it := txn.NewIterator(opts)
		defer it.Close()

		chunks = make([]meta.ChunkRecord, 0)
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, derr := decodeChunk(val)
				if derr != nil {
					return derr
				}
				chunks = append(chunks, *rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// DeleteContentHash removes the hash row, chunk rows and "r:" entries in
// one transaction, returning the referenced ChunkIDs in index order.
func (s *BadgerMetadataStore) DeleteContentHash(ctx context.Context, hash blob.ContentHash) ([]blob.ChunkID, error) {
	var ids []blob.ChunkID

	err := s.update(ctx, func(txn *badger.Txn) error {
		ids = nil

		if _, err := txn.Get(keyHash(hash)); errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to get content hash %s: %w", hash, err)
		}

		// Collect chunk rows first; badger forbids deleting under an open
		// iterator.
		var chunkKeys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyChunkPrefix(hash)

		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				rec, derr := decodeChunk(val)
				if derr != nil {
					return derr
				}
				ids = append(ids, rec.ChunkID)
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
			chunkKeys = append(chunkKeys, item.KeyCopy(nil))
		}
		it.Close()

		for i, key := range chunkKeys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("failed to delete chunk row of %s: %w", hash, err)
			}
			if err := txn.Delete(keyChunkRef(ids[i], hash)); err != nil {
				return fmt.Errorf("failed to delete chunk ref of %s: %w", hash, err)
			}
		}
		if err := txn.Delete(keyHash(hash)); err != nil {
			return fmt.Errorf("failed to delete content hash %s: %w", hash, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountChunkRefs counts "r:" entries under the chunk prefix.
func (s *BadgerMetadataStore) CountChunkRefs(ctx context.Context, id blob.ChunkID) (uint64, error) {
	var n uint64

	err := s.view(ctx, func(txn *badger.Txn) error {
		n = countPrefix(txn, keyChunkRefPrefix(id))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListChunkRefs scans the "r:" namespace and deduplicates on the chunk
// component. Keys sort by chunk hex first, so duplicates are adjacent.
func (s *BadgerMetadataStore) ListChunkRefs(ctx context.Context) ([]blob.ChunkID, error) {
	var ids []blob.ChunkID

	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixChunkRef)

		it := txn.NewIterator(opts)
		defer it.Close()

		var last string
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, prefixChunkRef)
			sep := strings.IndexByte(rest, ':')
			if sep < 0 {
				continue
			}
			chunkHex := rest[:sep]
			if chunkHex == last {
				continue
			}
			last = chunkHex

			id, perr := blob.ParseChunkID(chunkHex)
			if perr != nil {
				return fmt.Errorf("corrupt chunk ref key %q: %w", key, perr)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListContentHashes scans the "h:" namespace.
func (s *BadgerMetadataStore) ListContentHashes(ctx context.Context) ([]blob.ContentHash, error) {
	var hashes []blob.ContentHash

	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixHash)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			h, perr := blob.ParseContentHash(strings.TrimPrefix(key, prefixHash))
			if perr != nil {
				return fmt.Errorf("corrupt content hash key %q: %w", key, perr)
			}
			hashes = append(hashes, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

// Stats aggregates over the "c:" and "h:" namespaces.
func (s *BadgerMetadataStore) Stats(ctx context.Context) (*meta.Stats, error) {
	stats := &meta.Stats{}

	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixContent)

		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, derr := decodeContent(val)
				if derr != nil {
					return derr
				}
				stats.ContentCount++
				stats.LogicalBytes += rec.Size
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		opts = badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixHash)

		it = txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, derr := decodeHash(val)
				if derr != nil {
					return derr
				}
				stats.HashCount++
				stats.UniqueBytes += rec.Size
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
