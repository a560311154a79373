package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder produces deterministic unit vectors derived from a hash of
// the text, so equal texts always embed identically. Useful for tests and
// offline runs.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.vector(text)
	}
	return embeddings, nil
}

func (e *MockEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *MockEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := float64(h.Sum64()%100003) + 1

	v := make([]float32, e.dimension)
	var sum float64
	for i := range v {
		x := math.Sin(seed*float64(i+1))*0.1 + 0.01
		v[i] = float32(x)
		sum += x * x
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range v {
			v[i] = float32(float64(v[i]) * norm)
		}
	}
	return v
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
