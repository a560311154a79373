package port

import (
	"context"

	"reciperag/internal/domain"
)

// Searcher finds the entities of a kind most similar to a query.
type Searcher interface {
	// Search returns at most k hits ordered by descending score.
	Search(ctx context.Context, kind domain.Kind, query string, k int) ([]domain.SearchHit, error)
}
