package domain

import (
	"fmt"
	"strings"
)

// Kind discriminates ingredient embeddings from recipe embeddings.
type Kind string

const (
	KindIngredient Kind = "ingredient"
	KindRecipe     Kind = "recipe"
)

// Kinds lists every kind in rebuild order.
var Kinds = []Kind{KindIngredient, KindRecipe}

// ParseKind converts a user-supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIngredient:
		return KindIngredient, nil
	case KindRecipe:
		return KindRecipe, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k Kind) String() string {
	return string(k)
}

type Ingredient struct {
	ID            int64  `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	CanonicalName string `json:"canonical_name" yaml:"canonical_name"`
	Category      string `json:"category,omitempty" yaml:"category"`
	Source        string `json:"source,omitempty" yaml:"source"`
}

type Recipe struct {
	ID    int64  `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
	Tags  string `json:"tags,omitempty" yaml:"tags"`
}

// RecipeIngredient links a recipe to one raw ingredient line.
type RecipeIngredient struct {
	RecipeID  int64
	Raw       string
	Canonical string
}

// EmbeddingRecord is one stored vector for one entity of one kind.
type EmbeddingRecord struct {
	Kind     Kind
	EntityID int64
	Vector   []float32
}

// SearchHit is a transient (entity, similarity) pair.
type SearchHit struct {
	EntityID int64   `json:"id"`
	Score    float64 `json:"score"`
}

// Constraints are the user's dietary limits passed through to the prompt.
type Constraints struct {
	Calories  int      `json:"calories,omitempty"`
	Diet      string   `json:"diet,omitempty"`
	Allergens []string `json:"allergens,omitempty"`
}
