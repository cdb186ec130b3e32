package relevance

import "context"

// EmbeddingClient generates fixed-length vectors for text. Implementations
// wrap Azure OpenAI or compatible embedding APIs; failures are expected and
// handled by the selector, never fatal to a turn.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one call and returns vectors keyed
	// by input text. Texts missing from the result failed to embed.
	EmbedBatch(ctx context.Context, texts []string) (map[string][]float32, error)
}
