package port

import (
	"context"

	"reciperag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	// Callers never pass empty strings.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore persists one embedding per entity per kind.
type VectorStore interface {
	// Upsert inserts or replaces a single embedding row.
	Upsert(ctx context.Context, kind domain.Kind, entityID int64, vector []float32) error

	// UpsertBatch applies all records atomically: either every row is written or none is.
	UpsertBatch(ctx context.Context, kind domain.Kind, records []domain.EmbeddingRecord) error

	// Scan returns every stored row of kind, in no particular order.
	// Rows failing the shape invariant are left out and reported as joined
	// *domain.CorruptRecordError values alongside the valid rows.
	Scan(ctx context.Context, kind domain.Kind) ([]domain.EmbeddingRecord, error)

	// Delete removes rows by entity id.
	Delete(ctx context.Context, kind domain.Kind, ids []int64) error

	// IDs lists the entity ids that have a stored row.
	IDs(ctx context.Context, kind domain.Kind) ([]int64, error)

	// Count returns the number of stored rows of kind.
	Count(ctx context.Context, kind domain.Kind) (int, error)

	// Dimension returns the fixed vector dimension of the store.
	Dimension() int
}
