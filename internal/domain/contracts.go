package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
// The model name travels per call because ingested lines may override it.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Generator produces text from a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
