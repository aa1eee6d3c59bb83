package ai

import "context"

// ModelMetrics contains performance metrics from embedding operations.
type ModelMetrics struct {
	InputTokens int   `json:"input_tokens"`
	TotalTokens int   `json:"total_tokens"`
	DurationMs  int64 `json:"duration_ms"`
}

// EmbeddingClient defines the interface for embedding backends. Embeddings are
// the only model-dependent operation in the system; relation mining and span
// resolution are deterministic and never call a model.
type EmbeddingClient interface {
	// GenerateEmbedding creates a vector embedding for a single input.
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)

	// GenerateEmbeddings creates embeddings for multiple inputs, preserving
	// input order. Empty inputs yield zero vectors.
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)

	ResetMetrics()
	GetMetrics() ModelMetrics
}
