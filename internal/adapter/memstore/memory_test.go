package memstore

import (
	"context"
	"testing"

	"reciperag/internal/domain"
	"reciperag/internal/port"
)

var (
	_ port.Catalog       = (*MemoryCatalog)(nil)
	_ port.CatalogWriter = (*MemoryCatalog)(nil)
	_ port.VectorStore   = (*MemoryVectorStore)(nil)
)

func TestMemoryCatalog_Association(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()

	tomato, _ := c.InsertIngredient(ctx, domain.Ingredient{Name: "Ripe Tomatoes"})
	if _, err := c.InsertRecipe(ctx, domain.Recipe{ID: 20, Title: "Salsa"}, []domain.RecipeIngredient{{Raw: "3 tomatoes, diced"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.InsertRecipe(ctx, domain.Recipe{ID: 7, Title: "Soup"}, []domain.RecipeIngredient{{Raw: "tomatoes"}}); err != nil {
		t.Fatal(err)
	}

	got, err := c.RecipeIDsForIngredients(ctx, []int64{tomato})
	if err != nil {
		t.Fatal(err)
	}
	if ids := got[tomato]; len(ids) != 2 || ids[0] != 7 || ids[1] != 20 {
		t.Errorf("expected [7 20], got %v", ids)
	}
}

func TestMemoryVectorStore_Corrupt(t *testing.T) {
	s := NewMemoryVectorStore(2)
	s.PutRaw(domain.KindRecipe, 1, []float32{1})

	rows, err := s.Scan(context.Background(), domain.KindRecipe)
	if len(rows) != 0 {
		t.Errorf("expected no valid rows, got %d", len(rows))
	}
	if len(domain.CorruptRecords(err)) != 1 {
		t.Errorf("expected one corrupt record, got %v", err)
	}
}
