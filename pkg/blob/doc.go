// Package blob defines the identifier primitives shared by every layer of
// dittostore: ContentID (the opaque handle issued for each write), ChunkID
// (SHA-256 of one chunk's bytes) and ContentHash (SHA-256 of a full content
// value).
//
// Identifier Namespaces:
//
// ChunkID and ContentHash share an external encoding (64 lowercase hex
// characters) but are distinct types with distinct meanings. A ChunkID
// addresses raw bytes in a chunk store; a ContentHash identifies a distinct
// content value in the metadata store. Keeping them as separate Go types
// prevents a chunk digest from ever being used as a content digest and vice
// versa.
//
// ContentID is deliberately NOT content-derived: it is assigned at session
// creation, before any byte of the content is known, and stays attached to
// the logical write even when the bytes deduplicate onto a pre-existing
// content value.
package blob
