package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reciperag/internal/domain"
	"reciperag/internal/logging"
	"reciperag/internal/port"
)

// SemanticSearcher ranks stored embeddings of one kind against a query by
// exhaustive cosine similarity.
type SemanticSearcher struct {
	vectorStore port.VectorStore
	embedder    port.Embedder
	logger      *zap.Logger
}

func NewSemanticSearcher(
	vectorStore port.VectorStore,
	embedder port.Embedder,
	logger *zap.Logger,
) *SemanticSearcher {
	return &SemanticSearcher{
		vectorStore: vectorStore,
		embedder:    embedder,
		logger:      logging.OrNop(logger),
	}
}

// Search embeds query once and returns at most k hits of kind.
func (s *SemanticSearcher) Search(ctx context.Context, kind domain.Kind, query string, k int) ([]domain.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if k <= 0 {
		return []domain.SearchHit{}, nil
	}

	vec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, domain.NewProviderError("embed_query", 0, 0, err)
	}

	return s.SearchVector(ctx, kind, vec, k)
}

// SearchVector ranks stored embeddings of kind against an already embedded
// query. Corrupt rows are logged and skipped.
func (s *SemanticSearcher) SearchVector(ctx context.Context, kind domain.Kind, query []float32, k int) ([]domain.SearchHit, error) {
	if k <= 0 {
		return []domain.SearchHit{}, nil
	}

	records, err := s.vectorStore.Scan(ctx, kind)
	if err != nil {
		corrupt := domain.CorruptRecords(err)
		if len(corrupt) == 0 {
			return nil, fmt.Errorf("scan %s embeddings: %w", kind, err)
		}
		for _, c := range corrupt {
			s.logger.Warn("skipping corrupt embedding",
				zap.String("kind", c.Kind.String()),
				zap.Int64("id", c.EntityID),
				zap.Int("bytes", c.Length),
				zap.Int("expected", c.Expected))
		}
	}

	hits := make([]domain.SearchHit, 0, len(records))
	for _, rec := range records {
		hits = append(hits, domain.SearchHit{
			EntityID: rec.EntityID,
			Score:    Cosine(query, rec.Vector),
		})
	}

	hits = TopK(hits, k)
	s.logger.Debug("similarity search",
		zap.String("kind", kind.String()),
		zap.Int("scanned", len(records)),
		zap.Int("returned", len(hits)))

	return hits, nil
}
