package model

import "context"

// Embedder turns text into dense vectors for semantic retrieval. All vectors
// returned by one Embedder must share the same dimension.
type Embedder interface {
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds a batch of documents, one vector per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}
