package usecase

import (
	"context"
	"sync"
	"testing"

	"reciperag/internal/adapter/embedding"
	"reciperag/internal/adapter/memstore"
	"reciperag/internal/domain"
)

// scriptedEmbedder delegates to a MockEmbedder but fails the calls listed
// in failOn (1-based call numbers).
type scriptedEmbedder struct {
	*embedding.MockEmbedder

	mu      sync.Mutex
	calls   int
	failOn  map[int]error
	started chan struct{}
	release chan struct{}
}

func newScriptedEmbedder(dim int) *scriptedEmbedder {
	return &scriptedEmbedder{MockEmbedder: embedding.NewMockEmbedder(dim), failOn: map[int]error{}}
}

func (e *scriptedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	err := e.failOn[call]
	started, release := e.started, e.release
	e.mu.Unlock()

	if started != nil && call == 1 {
		close(started)
		<-release
	}
	if err != nil {
		return nil, err
	}
	return e.MockEmbedder.Embed(ctx, texts)
}

func (e *scriptedEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// stubSearcher returns canned hits per kind and records the k it was asked for.
type stubSearcher struct {
	hits  map[domain.Kind][]domain.SearchHit
	errs  map[domain.Kind]error
	asked map[domain.Kind]int
}

func (s *stubSearcher) Search(ctx context.Context, kind domain.Kind, query string, k int) ([]domain.SearchHit, error) {
	if s.asked == nil {
		s.asked = map[domain.Kind]int{}
	}
	s.asked[kind] = k
	if err := s.errs[kind]; err != nil {
		return nil, err
	}
	hits := s.hits[kind]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func hits(ids ...int64) []domain.SearchHit {
	out := make([]domain.SearchHit, len(ids))
	for i, id := range ids {
		out[i] = domain.SearchHit{EntityID: id, Score: 1 - float64(i)*0.01}
	}
	return out
}

// newKitchen returns a catalog with a handful of ingredients and recipes.
// Recipe 6 has neither title nor body.
func newKitchen(t *testing.T) *memstore.MemoryCatalog {
	t.Helper()
	ctx := context.Background()
	c := memstore.NewMemoryCatalog()

	for _, ing := range []domain.Ingredient{
		{ID: 101, Name: "Tomatoes"},
		{ID: 102, Name: "Basil"},
		{ID: 103, Name: "Chickpeas"},
	} {
		if _, err := c.InsertIngredient(ctx, ing); err != nil {
			t.Fatal(err)
		}
	}

	recipes := []struct {
		recipe domain.Recipe
		lines  []string
	}{
		{domain.Recipe{ID: 1, Title: "Tomato Soup", Body: "Simmer tomatoes.", Tags: "soup"}, []string{"4 tomatoes"}},
		{domain.Recipe{ID: 2, Title: "Pesto", Body: "Blend basil.", Tags: "sauce"}, []string{"fresh basil"}},
		{domain.Recipe{ID: 3, Title: "Hummus", Body: "Blend chickpeas.", Tags: "dip"}, []string{"chickpeas"}},
		{domain.Recipe{ID: 4, Title: "Caprese", Body: "Slice and layer.", Tags: "salad"}, []string{"tomatoes", "basil"}},
		{domain.Recipe{ID: 5, Title: "Chana Masala", Body: "Stew chickpeas with tomatoes.", Tags: "curry"}, []string{"chickpeas", "tomatoes"}},
		{domain.Recipe{ID: 6}, nil},
	}
	for _, r := range recipes {
		lines := make([]domain.RecipeIngredient, len(r.lines))
		for i, raw := range r.lines {
			lines[i] = domain.RecipeIngredient{Raw: raw}
		}
		if _, err := c.InsertRecipe(ctx, r.recipe, lines); err != nil {
			t.Fatal(err)
		}
	}
	return c
}
