// Package docstore implements core.DocumentStore on top of SQLite metadata
// plus an append-only in-memory vector index persisted as a JSON snapshot.
//
// The vector index and the metadata table share an insertion-order contract:
// ordinal i in the index belongs to the i-th ever-added record that carried an
// embedding. Soft deletion flips a status column only; vectors are never
// removed or renumbered. Every read path filters soft-deleted records,
// including the semantic tier.
package docstore
