package domain

import (
	"context"
	"math"
)

// normEpsilon guards the unit-normalization against a degenerate all-zero
// embedding.
const normEpsilon = 1e-12

// EmbeddingResult is a query embedding with provider token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into a unit-length embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can verify provider
// availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NormalizeVector divides v by its L2 norm in place and returns it. Downstream
// similarity search assumes unit vectors for cosine-equivalent scoring.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
