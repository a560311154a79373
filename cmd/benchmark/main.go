package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"reciperag/config"
	"reciperag/internal/adapter/catalog"
	"reciperag/internal/adapter/embedding"
	"reciperag/internal/adapter/retriever"
	"reciperag/internal/adapter/store"
	"reciperag/internal/domain"
	"reciperag/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Project directory (config and data)")
	query := flag.String("q", "", "Query to test")
	kRec := flag.Int("k-rec", 0, "Recipes to retrieve (default from config)")
	kIng := flag.Int("k-ing", 0, "Ingredients to backfill through (default from config)")
	relevantFlag := flag.String("relevant", "", "Comma-separated recipe ids judged relevant, for ranking metrics")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./project -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding setup (model, dimension, stored vectors)")
		fmt.Println("  2. Similarity of the nearest recipes and ingredients")
		fmt.Println("  3. How much of the context came from ingredient backfill")
		fmt.Println("  4. Precision, recall, MRR and NDCG when -relevant is given")
		os.Exit(1)
	}

	relevant, err := parseIDs(*relevantFlag)
	if err != nil {
		fatal("Invalid -relevant", err)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fatal("Error loading config", err)
	}
	cfg.Resolve(*dir)
	if *kRec <= 0 {
		*kRec = cfg.Retrieve.KRecipes
	}
	if *kIng <= 0 {
		*kIng = cfg.Retrieve.KIngredients
	}

	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		fatal("Error opening catalog", err)
	}
	defer cat.Close()

	bolt, err := store.Open(cfg.Vectors.Path, cfg.Vectors.OpenTimeout)
	if err != nil {
		fatal("Error opening vectors", err)
	}
	defer bolt.Close()

	embedder, err := embedding.FromConfig(cfg.Embedding)
	if err != nil {
		fatal("Embedder init failed", err)
	}
	vectors, err := store.NewBoltVectorStore(bolt, embedder.Dimension())
	if err != nil {
		fatal("Vector store failed", err)
	}

	ctx := context.Background()
	fmt.Println("RECIPE RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	for _, kind := range domain.Kinds {
		n, _ := vectors.Count(ctx, kind)
		fmt.Printf("%-11s vectors: %d\n", kind, n)
	}
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	current := store.Fingerprint{Provider: cfg.Embedding.Provider, Model: embedder.ModelName(), Dimension: embedder.Dimension()}
	for _, kind := range domain.Kinds {
		compat, err := bolt.CheckCompatibility(kind, current)
		if err != nil {
			fatal("Compatibility check failed", err)
		}
		if compat.NeedsRebuild {
			fmt.Printf("WARNING: %s vectors need a rebuild (%s); scores are not meaningful\n", kind, compat.Reason)
		}
	}
	fmt.Println()

	fmt.Printf("Query: %q\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	queryVec, err := embedder.EmbedOne(ctx, *query)
	if err != nil {
		fatal("Embedding error", err)
	}
	fmt.Printf("Query embedded in %s\n\n", time.Since(start).Round(time.Millisecond))

	searcher := retriever.NewSemanticSearcher(vectors, embedder, nil)
	recipeHits := searchTimed(ctx, searcher, domain.KindRecipe, queryVec, *kRec)
	ingredientHits := searchTimed(ctx, searcher, domain.KindIngredient, queryVec, *kIng)

	ids := make([]int64, len(recipeHits))
	for i, h := range recipeHits {
		ids[i] = h.EntityID
	}
	recipes, _ := cat.RecipesByIDs(ctx, ids)
	titles := make(map[int64]string, len(recipes))
	for _, r := range recipes {
		titles[r.ID] = r.Title
	}

	fmt.Printf("Top %d recipe matches:\n\n", len(recipeHits))
	for i, h := range recipeHits {
		fmt.Printf("%2d. [%s %.3f] #%d %s\n", i+1, rating(h.Score), h.Score, h.EntityID, titles[h.EntityID])
	}

	retrieve := usecase.NewRetrieveUseCase(searcher, cat, cfg.Retrieve.BackfillPerIngredient, nil)
	start = time.Now()
	r, err := retrieve.Retrieve(ctx, *query, *kRec, *kIng)
	if err != nil {
		fatal("Retrieval error", err)
	}
	elapsed := time.Since(start)

	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Recipe top-1 similarity:     %.3f\n", top1(recipeHits))
	fmt.Printf("  Recipe average similarity:   %.3f\n", average(recipeHits))
	fmt.Printf("  Ingredient top-1 similarity: %.3f\n", top1(ingredientHits))
	fmt.Printf("  Context: %d direct + %d backfilled recipes (%s)\n", len(r.Primary), len(r.Backfill), elapsed.Round(time.Millisecond))

	if len(relevant) > 0 {
		ids := r.IDs()
		fmt.Printf("  Precision@%d: %.3f\n", len(ids), retriever.PrecisionAtK(ids, relevant))
		fmt.Printf("  Recall@%d:    %.3f\n", len(ids), retriever.RecallAtK(ids, relevant))
		fmt.Printf("  MRR:          %.3f\n", retriever.ReciprocalRank(ids, relevant))
		fmt.Printf("  NDCG:         %.3f\n", retriever.NDCG(ids, relevant))
	}

	switch avg := average(recipeHits); {
	case len(recipeHits) == 0:
		fmt.Println("  Status: EMPTY - run 'reciperag rebuild' first")
	case avg > 0.5:
		fmt.Println("  Status: GOOD - recipes match the request well")
	case avg > 0.3:
		fmt.Println("  Status: OK - results are somewhat related")
	default:
		fmt.Println("  Status: POOR - the catalog may lack matching recipes")
	}
}

func searchTimed(ctx context.Context, s *retriever.SemanticSearcher, kind domain.Kind, vec []float32, k int) []domain.SearchHit {
	start := time.Now()
	hits, err := s.SearchVector(ctx, kind, vec, k)
	if err != nil {
		fatal("Search error", err)
	}
	fmt.Printf("%s search: %d hits in %s\n", kind, len(hits), time.Since(start).Round(time.Microsecond))
	return hits
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	}
	return "LOW"
}

func top1(hits []domain.SearchHit) float64 {
	if len(hits) == 0 {
		return 0
	}
	return hits[0].Score
}

func average(hits []domain.SearchHit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hits {
		sum += h.Score
	}
	return sum / float64(len(hits))
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
