package port

import (
	"context"

	"reciperag/internal/domain"
)

// Catalog is the relational store holding ingredients and recipes.
type Catalog interface {
	ListIngredients(ctx context.Context) ([]domain.Ingredient, error)

	ListRecipes(ctx context.Context) ([]domain.Recipe, error)

	// Count returns the number of entities of kind.
	Count(ctx context.Context, kind domain.Kind) (int, error)

	// IngredientsByIDs returns the ingredients that exist, in no particular order.
	IngredientsByIDs(ctx context.Context, ids []int64) ([]domain.Ingredient, error)

	// RecipesByIDs returns the recipes that exist, in no particular order.
	RecipesByIDs(ctx context.Context, ids []int64) ([]domain.Recipe, error)

	// RecipeIDsForIngredients maps each ingredient id to the ids of recipes
	// using it, ascending. Ingredients with no recipe are absent from the map.
	RecipeIDsForIngredients(ctx context.Context, ingredientIDs []int64) (map[int64][]int64, error)

	Close() error
}

// CatalogWriter is implemented by catalogs that accept new entities.
type CatalogWriter interface {
	InsertIngredient(ctx context.Context, ing domain.Ingredient) (int64, error)

	// InsertRecipe stores the recipe and its ingredient lines together.
	InsertRecipe(ctx context.Context, recipe domain.Recipe, lines []domain.RecipeIngredient) (int64, error)

	DeleteRecipe(ctx context.Context, id int64) error
}
