package badger

import (
	"encoding/binary"

	"github.com/marmos91/dittostore/pkg/blob"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so the three metadata relations plus the
// two secondary indexes the engine needs are organized into prefixed key
// namespaces. Prefixes prevent collisions, make range scans cheap and keep
// the database structure self-documenting.
//
// Data Type              Prefix  Key Format                       Value
// ========================================================================
// Content (handle)       "c:"    c:<contentID hex>                ContentRecord (JSON)
// Handle-by-hash index   "x:"    x:<hash hex>:<contentID hex>     (empty)
// Content hash (value)   "h:"    h:<hash hex>                     ContentHashRecord (JSON)
// Chunk list             "k:"    k:<hash hex>:<index BE uint32>   ChunkRecord (JSON)
// Chunk ref index        "r:"    r:<chunkID hex>:<hash hex>       (empty)
//
// Key Design Rationale:
//
// 1. Content (c:)
//    - Point lookup by ContentID: O(1)
//    - Hex encoding keeps keys printable; the raw 12 bytes would work but
//      debuggability wins for metadata-sized data.
//
// 2. Handle-by-hash index (x:)
//    - One empty-valued row per (hash, handle) pair.
//    - CountContentByHash is a key-only prefix scan over "x:<hash>:".
//    - Maintained in the same transaction as the "c:" row.
//
// 3. Content hash (h:)
//    - One row per distinct content value; the insert-if-absent target.
//
// 4. Chunk list (k:)
//    - One row per chunk, big-endian uint32 index suffix so lexicographic
//      key order equals chunk order: GetChunks is one ordered prefix scan.
//
// 5. Chunk ref index (r:)
//    - One empty-valued row per (chunk, hash) pair.
//    - CountChunkRefs is a key-only prefix scan over "r:<chunkID>:";
//      ListChunkRefs scans "r:" and deduplicates on the chunk component.
//    - Maintained in the same transaction as the "k:" rows.

const (
	prefixContent   = "c:"
	prefixHashIndex = "x:"
	prefixHash      = "h:"
	prefixChunk     = "k:"
	prefixChunkRef  = "r:"
)

// keyContent returns "c:<contentID hex>".
func keyContent(id blob.ContentID) []byte {
	return []byte(prefixContent + id.String())
}

// keyHashIndex returns "x:<hash hex>:<contentID hex>".
func keyHashIndex(hash blob.ContentHash, id blob.ContentID) []byte {
	return []byte(prefixHashIndex + hash.String() + ":" + id.String())
}

// keyHashIndexPrefix returns the scan prefix "x:<hash hex>:".
func keyHashIndexPrefix(hash blob.ContentHash) []byte {
	return []byte(prefixHashIndex + hash.String() + ":")
}

// keyHash returns "h:<hash hex>".
func keyHash(hash blob.ContentHash) []byte {
	return []byte(prefixHash + hash.String())
}

// keyChunk returns "k:<hash hex>:<index>" with a big-endian uint32 index so
// lexicographic ordering matches chunk ordering.
func keyChunk(hash blob.ContentHash, index uint32) []byte {
	key := make([]byte, 0, len(prefixChunk)+64+1+4)
	key = append(key, prefixChunk...)
	key = append(key, hash.String()...)
	key = append(key, ':')
	key = binary.BigEndian.AppendUint32(key, index)
	return key
}

// keyChunkPrefix returns the scan prefix "k:<hash hex>:".
func keyChunkPrefix(hash blob.ContentHash) []byte {
	return []byte(prefixChunk + hash.String() + ":")
}

// keyChunkRef returns "r:<chunkID hex>:<hash hex>".
func keyChunkRef(id blob.ChunkID, hash blob.ContentHash) []byte {
	return []byte(prefixChunkRef + id.String() + ":" + hash.String())
}

// keyChunkRefPrefix returns the scan prefix "r:<chunkID hex>:".
func keyChunkRefPrefix(id blob.ChunkID) []byte {
	return []byte(prefixChunkRef + id.String() + ":")
}
