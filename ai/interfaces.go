package ai

import "context"

// Embedder turns text into dense vectors. It backs the "embedding" encoder
// variant of the relevance classifier; the vectors are treated as frozen
// features and only the classifier head is trained on top of them.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
