package usecase

import (
	"context"
	"fmt"
	"strings"

	"reciperag/internal/domain"
	"reciperag/internal/port"
)

// NoContextPlaceholder stands in for the context when nothing was retrieved.
const NoContextPlaceholder = "(No relevant recipes found in database. Use general knowledge to suggest a recipe.)"

const blockSeparator = "\n---\n"

// PackUseCase serializes retrieved recipes into grounding text.
type PackUseCase struct {
	catalog port.Catalog
}

// NewPackUseCase creates a new pack use case.
func NewPackUseCase(catalog port.Catalog) *PackUseCase {
	return &PackUseCase{catalog: catalog}
}

// Assemble renders one block per recipe in ids order, joined by a "---"
// line. Ids the catalog does not know (including orphans left by deleted
// recipes) are silently dropped; if none remain the result is "".
func (u *PackUseCase) Assemble(ctx context.Context, ids []int64) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}

	recipes, err := u.catalog.RecipesByIDs(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("failed to fetch recipes: %w", err)
	}
	byID := make(map[int64]domain.Recipe, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
	}

	blocks := make([]string, 0, len(ids))
	emitted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := emitted[id]; dup {
			continue
		}
		emitted[id] = struct{}{}
		blocks = append(blocks, RenderBlock(r))
	}

	return strings.Join(blocks, blockSeparator), nil
}

// RenderBlock renders a single recipe as a context block.
func RenderBlock(r domain.Recipe) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(r.Title)
	b.WriteString("\nTags: ")
	b.WriteString(r.Tags)
	b.WriteString("\nMethod: ")
	b.WriteString(r.Body)
	b.WriteString("\n")
	return b.String()
}
