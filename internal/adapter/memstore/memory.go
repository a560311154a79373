package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"reciperag/internal/adapter/analyzer"
	"reciperag/internal/domain"
)

// MemoryCatalog is an in-memory port.Catalog and port.CatalogWriter.
type MemoryCatalog struct {
	mu          sync.RWMutex
	ingredients map[int64]domain.Ingredient
	recipes     map[int64]domain.Recipe
	lines       map[int64][]domain.RecipeIngredient
	nextID      int64
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		ingredients: make(map[int64]domain.Ingredient),
		recipes:     make(map[int64]domain.Recipe),
		lines:       make(map[int64][]domain.RecipeIngredient),
	}
}

func (c *MemoryCatalog) assignID(id int64) int64 {
	if id == 0 {
		c.nextID++
		return c.nextID
	}
	if id > c.nextID {
		c.nextID = id
	}
	return id
}

func (c *MemoryCatalog) InsertIngredient(ctx context.Context, ing domain.Ingredient) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.ingredients[ing.ID]; exists && ing.ID != 0 {
		return 0, fmt.Errorf("ingredient %d already exists", ing.ID)
	}
	if ing.CanonicalName == "" {
		ing.CanonicalName = analyzer.CanonicalizeName(ing.Name)
	}
	ing.ID = c.assignID(ing.ID)
	c.ingredients[ing.ID] = ing
	return ing.ID, nil
}

func (c *MemoryCatalog) InsertRecipe(ctx context.Context, recipe domain.Recipe, lines []domain.RecipeIngredient) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.recipes[recipe.ID]; exists && recipe.ID != 0 {
		return 0, fmt.Errorf("recipe %d already exists", recipe.ID)
	}
	recipe.ID = c.assignID(recipe.ID)
	c.recipes[recipe.ID] = recipe

	stored := make([]domain.RecipeIngredient, len(lines))
	for i, line := range lines {
		line.RecipeID = recipe.ID
		if line.Canonical == "" {
			line.Canonical = analyzer.CanonicalizeName(line.Raw)
		}
		stored[i] = line
	}
	c.lines[recipe.ID] = stored
	return recipe.ID, nil
}

func (c *MemoryCatalog) DeleteRecipe(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.recipes[id]; !ok {
		return &domain.NotFoundError{Kind: domain.KindRecipe, ID: id}
	}
	delete(c.recipes, id)
	delete(c.lines, id)
	return nil
}

func (c *MemoryCatalog) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Ingredient, 0, len(c.ingredients))
	for _, ing := range c.ingredients {
		out = append(out, ing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Recipe, 0, len(c.recipes))
	for _, r := range c.recipes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) Count(ctx context.Context, kind domain.Kind) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch kind {
	case domain.KindIngredient:
		return len(c.ingredients), nil
	case domain.KindRecipe:
		return len(c.recipes), nil
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
}

// IngredientsByIDs returns matches in map order, mirroring a relational
// store that gives no ordering guarantee.
func (c *MemoryCatalog) IngredientsByIDs(ctx context.Context, ids []int64) ([]domain.Ingredient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	want := toSet(ids)
	var out []domain.Ingredient
	for id, ing := range c.ingredients {
		if _, ok := want[id]; ok {
			out = append(out, ing)
		}
	}
	return out, nil
}

// RecipesByIDs returns matches in map order.
func (c *MemoryCatalog) RecipesByIDs(ctx context.Context, ids []int64) ([]domain.Recipe, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	want := toSet(ids)
	var out []domain.Recipe
	for id, r := range c.recipes {
		if _, ok := want[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *MemoryCatalog) RecipeIDsForIngredients(ctx context.Context, ingredientIDs []int64) (map[int64][]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[int64][]int64)
	for _, ingID := range ingredientIDs {
		ing, ok := c.ingredients[ingID]
		if !ok || ing.CanonicalName == "" {
			continue
		}
		if _, done := out[ingID]; done {
			continue
		}
		var recipeIDs []int64
		for recipeID, lines := range c.lines {
			for _, line := range lines {
				if line.Canonical == ing.CanonicalName {
					recipeIDs = append(recipeIDs, recipeID)
					break
				}
			}
		}
		if len(recipeIDs) > 0 {
			sort.Slice(recipeIDs, func(i, j int) bool { return recipeIDs[i] < recipeIDs[j] })
			out[ingID] = recipeIDs
		}
	}
	return out, nil
}

func (c *MemoryCatalog) Close() error {
	return nil
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// MemoryVectorStore is an in-memory port.VectorStore. Setting FailWrites
// makes every write return that error, which tests use to simulate a
// broken store.
type MemoryVectorStore struct {
	mu         sync.RWMutex
	dimension  int
	rows       map[domain.Kind]map[int64][]float32
	FailWrites error
}

func NewMemoryVectorStore(dimension int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimension: dimension,
		rows:      make(map[domain.Kind]map[int64][]float32),
	}
}

func (s *MemoryVectorStore) Dimension() int {
	return s.dimension
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, kind domain.Kind, entityID int64, vector []float32) error {
	return s.UpsertBatch(ctx, kind, []domain.EmbeddingRecord{{Kind: kind, EntityID: entityID, Vector: vector}})
}

func (s *MemoryVectorStore) UpsertBatch(ctx context.Context, kind domain.Kind, records []domain.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}
	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(rec.Vector))
		}
	}

	bucket := s.rows[kind]
	if bucket == nil {
		bucket = make(map[int64][]float32)
		s.rows[kind] = bucket
	}
	for _, rec := range records {
		bucket[rec.EntityID] = append([]float32(nil), rec.Vector...)
	}
	return nil
}

// PutRaw stores a vector without validation, for simulating corruption.
func (s *MemoryVectorStore) PutRaw(kind domain.Kind, entityID int64, vector []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows[kind] == nil {
		s.rows[kind] = make(map[int64][]float32)
	}
	s.rows[kind][entityID] = vector
}

func (s *MemoryVectorStore) Scan(ctx context.Context, kind domain.Kind) ([]domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		out     []domain.EmbeddingRecord
		corrupt []error
	)
	for id, vec := range s.rows[kind] {
		if len(vec) != s.dimension {
			corrupt = append(corrupt, &domain.CorruptRecordError{Kind: kind, EntityID: id, Length: len(vec) * 4, Expected: s.dimension * 4})
			continue
		}
		out = append(out, domain.EmbeddingRecord{Kind: kind, EntityID: id, Vector: append([]float32(nil), vec...)})
	}
	return out, errors.Join(corrupt...)
}

func (s *MemoryVectorStore) Delete(ctx context.Context, kind domain.Kind, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}
	for _, id := range ids {
		delete(s.rows[kind], id)
	}
	return nil
}

func (s *MemoryVectorStore) IDs(ctx context.Context, kind domain.Kind) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.rows[kind]))
	for id := range s.rows[kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryVectorStore) Count(ctx context.Context, kind domain.Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[kind]), nil
}
