package core

import "context"

// EmbeddingProvider turns text into a vector of the requested dimension.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, dim int) ([]float32, error)
}

// ModelRuntime sends a raw, model-specific request body and returns the raw response body.
type ModelRuntime interface {
	InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error)
}

// GenerationParams are the sampling knobs shared by every model family.
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// TextGenerator is implemented by SDK-backed model families that do not speak raw bodies.
type TextGenerator interface {
	Generate(ctx context.Context, modelID, prompt string, p GenerationParams) (string, error)
}

// BatchEmbedder is implemented by providers that embed many texts per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, dim int) ([][]float32, error)
}
