package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reciperag/internal/domain"
	"reciperag/internal/logging"
	"reciperag/internal/port"
)

// Retrieval is the two-tier result of a retrieval: recipes found directly
// come first, recipes reached through matching ingredients come after, and
// the two tiers are never merged by score.
type Retrieval struct {
	Primary        []int64            `json:"primary"`
	Backfill       []int64            `json:"backfill"`
	RecipeHits     []domain.SearchHit `json:"recipe_hits"`
	IngredientHits []domain.SearchHit `json:"ingredient_hits,omitempty"`
}

// IDs returns the primary tier followed by the backfill tier, without
// duplicates, in first-seen order.
func (r *Retrieval) IDs() []int64 {
	if r == nil {
		return []int64{}
	}
	seen := make(map[int64]struct{}, len(r.Primary)+len(r.Backfill))
	out := make([]int64, 0, len(r.Primary)+len(r.Backfill))
	for _, tier := range [][]int64{r.Primary, r.Backfill} {
		for _, id := range tier {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// RetrieveUseCase finds recipe ids for a query.
type RetrieveUseCase struct {
	searcher              port.Searcher
	catalog               port.Catalog
	backfillPerIngredient int
	logger                *zap.Logger
}

// NewRetrieveUseCase creates a new retrieve use case. backfillPerIngredient
// caps the recipes one ingredient hit may contribute; 0 means no cap.
func NewRetrieveUseCase(
	searcher port.Searcher,
	catalog port.Catalog,
	backfillPerIngredient int,
	logger *zap.Logger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		searcher:              searcher,
		catalog:               catalog,
		backfillPerIngredient: backfillPerIngredient,
		logger:                logging.OrNop(logger),
	}
}

// Retrieve searches recipes first. When fewer than kRecipes recipes come
// back, it searches ingredients and backfills with the recipes that use
// them, in ingredient-hit order.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, kRecipes, kIngredients int) (*Retrieval, error) {
	recipeHits, err := u.searcher.Search(ctx, domain.KindRecipe, query, kRecipes)
	if err != nil {
		return nil, fmt.Errorf("recipe search failed: %w", err)
	}

	r := &Retrieval{
		Primary:    make([]int64, 0, len(recipeHits)),
		Backfill:   []int64{},
		RecipeHits: recipeHits,
	}
	seen := make(map[int64]struct{}, len(recipeHits))
	for _, hit := range recipeHits {
		if _, dup := seen[hit.EntityID]; dup {
			continue
		}
		seen[hit.EntityID] = struct{}{}
		r.Primary = append(r.Primary, hit.EntityID)
	}

	if len(r.Primary) >= kRecipes {
		return r, nil
	}

	ingredientHits, err := u.searcher.Search(ctx, domain.KindIngredient, query, kIngredients)
	if err != nil {
		return nil, fmt.Errorf("ingredient search failed: %w", err)
	}
	r.IngredientHits = ingredientHits
	if len(ingredientHits) == 0 {
		return r, nil
	}

	ingredientIDs := make([]int64, len(ingredientHits))
	for i, hit := range ingredientHits {
		ingredientIDs[i] = hit.EntityID
	}
	byIngredient, err := u.catalog.RecipeIDsForIngredients(ctx, ingredientIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipes for ingredients: %w", err)
	}

	for _, hit := range ingredientHits {
		recipeIDs := byIngredient[hit.EntityID]
		if u.backfillPerIngredient > 0 && len(recipeIDs) > u.backfillPerIngredient {
			recipeIDs = recipeIDs[:u.backfillPerIngredient]
		}
		for _, id := range recipeIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			r.Backfill = append(r.Backfill, id)
		}
	}

	u.logger.Debug("ingredient backfill",
		zap.Int("recipe_hits", len(r.Primary)),
		zap.Int("k_recipes", kRecipes),
		zap.Int("ingredient_hits", len(ingredientHits)),
		zap.Int("backfilled", len(r.Backfill)))

	return r, nil
}
