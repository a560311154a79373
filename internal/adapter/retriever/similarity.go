package retriever

import (
	"math"
	"sort"

	"reciperag/internal/domain"
)

// Cosine returns the cosine similarity of a and b computed in float64.
// Vectors of different length, with a zero norm, or with a non-finite
// component score exactly 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// TopK orders hits by descending score, ties by ascending entity id, and
// keeps the first k. The input slice is reordered in place.
func TopK(hits []domain.SearchHit, k int) []domain.SearchHit {
	if k <= 0 {
		return []domain.SearchHit{}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].EntityID < hits[j].EntityID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
