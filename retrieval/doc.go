// Package retrieval ranks stored documents against a user query using the
// hybrid tier cascade of the document store (semantic, then full-text, then
// keyword) and renders the hits into model-ready context plus user-facing
// source references.
//
// Retrieval never fails a turn: embedding errors degrade to text-only search
// and store errors degrade to an empty no-relevant-documents result.
package retrieval
