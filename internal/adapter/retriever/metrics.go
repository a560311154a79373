package retriever

import "math"

// Ranking quality measures over entity ids, used to judge retrieval
// against a hand-labelled set of relevant recipes.

// PrecisionAtK is the share of retrieved ids that are relevant.
func PrecisionAtK(retrieved, relevant []int64) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	return float64(countRelevant(retrieved, relevant)) / float64(len(retrieved))
}

// RecallAtK is the share of relevant ids that were retrieved.
func RecallAtK(retrieved, relevant []int64) float64 {
	if len(relevant) == 0 {
		return 0
	}
	return float64(countRelevant(retrieved, relevant)) / float64(len(relevant))
}

// ReciprocalRank is 1/rank of the first relevant id, or 0 if none was retrieved.
func ReciprocalRank(retrieved, relevant []int64) float64 {
	set := idSet(relevant)
	for i, id := range retrieved {
		if _, ok := set[id]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCG is the binary-relevance normalized discounted cumulative gain.
func NDCG(retrieved, relevant []int64) float64 {
	set := idSet(relevant)
	gains := make([]float64, len(retrieved))
	for i, id := range retrieved {
		if _, ok := set[id]; ok {
			gains[i] = 1
		}
	}

	ideal := make([]float64, min(len(set), len(retrieved)))
	for i := range ideal {
		ideal[i] = 1
	}

	idcg := dcg(ideal)
	if idcg == 0 {
		return 0
	}
	return dcg(gains) / idcg
}

func dcg(gains []float64) float64 {
	sum := 0.0
	for i, g := range gains {
		sum += g / math.Log2(float64(i+2))
	}
	return sum
}

func countRelevant(retrieved, relevant []int64) int {
	set := idSet(relevant)
	n := 0
	for _, id := range retrieved {
		if _, ok := set[id]; ok {
			n++
		}
	}
	return n
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
