package badger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marmos91/dittostore/pkg/blob"
	"github.com/marmos91/dittostore/pkg/meta"
)

// nanosToTime converts a stored UnixNano value back to time.Time.
func nanosToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// Serialization Strategy
// ======================
//
// Record values are stored as JSON. Metadata rows are small and read-heavy,
// so the debuggability of JSON (badger values can be dumped and inspected
// as text) outweighs the size advantage of a binary codec. Index rows
// ("x:" and "r:") carry empty values — the key is the data.
//
// Identifiers serialize as their external hex form inside the JSON values,
// via the wire* mirror structs below, so stored rows stay printable
// end-to-end.

// wireContent mirrors meta.ContentRecord with hex-encoded identifiers.
type wireContent struct {
	ID             string `json:"id"`
	Hash           string `json:"hash"`
	Size           uint64 `json:"size"`
	ChunkCount     uint32 `json:"chunk_count"`
	Extension      string `json:"extension,omitempty"`
	MimeType       string `json:"mime_type,omitempty"`
	CreatedAt      int64  `json:"created_at_ns"`
	LastAccessedAt int64  `json:"last_accessed_at_ns"`
}

// wireHash mirrors meta.ContentHashRecord.
type wireHash struct {
	Hash       string `json:"hash"`
	Size       uint64 `json:"size"`
	ChunkCount uint32 `json:"chunk_count"`
	CreatedAt  int64  `json:"created_at_ns"`
}

// wireChunk mirrors meta.ChunkRecord.
type wireChunk struct {
	Index   uint32 `json:"index"`
	ChunkID string `json:"chunk_id"`
	Size    uint32 `json:"size"`
}

func encodeContent(rec meta.ContentRecord) ([]byte, error) {
	w := wireContent{
		ID:             rec.ID.String(),
		Hash:           rec.Hash.String(),
		Size:           rec.Size,
		ChunkCount:     rec.ChunkCount,
		Extension:      rec.Extension,
		MimeType:       rec.MimeType,
		CreatedAt:      rec.CreatedAt.UnixNano(),
		LastAccessedAt: rec.LastAccessedAt.UnixNano(),
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content record: %w", err)
	}
	return data, nil
}

func decodeContent(data []byte) (*meta.ContentRecord, error) {
	var w wireContent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode content record: %w", err)
	}

	id, err := blob.ParseContentID(w.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt content record id: %w", err)
	}
	hash, err := blob.ParseContentHash(w.Hash)
	if err != nil {
		return nil, fmt.Errorf("corrupt content record hash: %w", err)
	}

	return &meta.ContentRecord{
		ID:             id,
		Hash:           hash,
		Size:           w.Size,
		ChunkCount:     w.ChunkCount,
		Extension:      w.Extension,
		MimeType:       w.MimeType,
		CreatedAt:      nanosToTime(w.CreatedAt),
		LastAccessedAt: nanosToTime(w.LastAccessedAt),
	}, nil
}

func encodeHash(rec meta.ContentHashRecord) ([]byte, error) {
	w := wireHash{
		Hash:       rec.Hash.String(),
		Size:       rec.Size,
		ChunkCount: rec.ChunkCount,
		CreatedAt:  rec.CreatedAt.UnixNano(),
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content hash record: %w", err)
	}
	return data, nil
}

func decodeHash(data []byte) (*meta.ContentHashRecord, error) {
	var w wireHash
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode content hash record: %w", err)
	}

	hash, err := blob.ParseContentHash(w.Hash)
	if err != nil {
		return nil, fmt.Errorf("corrupt content hash record: %w", err)
	}

	return &meta.ContentHashRecord{
		Hash:       hash,
		Size:       w.Size,
		ChunkCount: w.ChunkCount,
		CreatedAt:  nanosToTime(w.CreatedAt),
	}, nil
}

func encodeChunk(rec meta.ChunkRecord) ([]byte, error) {
	w := wireChunk{
		Index:   rec.Index,
		ChunkID: rec.ChunkID.String(),
		Size:    rec.Size,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk record: %w", err)
	}
	return data, nil
}

func decodeChunk(data []byte) (*meta.ChunkRecord, error) {
	var w wireChunk
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode chunk record: %w", err)
	}

	id, err := blob.ParseChunkID(w.ChunkID)
	if err != nil {
		return nil, fmt.Errorf("corrupt chunk record id: %w", err)
	}

	return &meta.ChunkRecord{
		Index:   w.Index,
		ChunkID: id,
		Size:    w.Size,
	}, nil
}
