package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reciperag/internal/domain"
)

var (
	searchQuery string
	searchKind  string
	searchK     int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find the recipes or ingredients nearest to a query",
	Long: `Embed a query and rank the stored vectors of one kind by cosine similarity.

Examples:
  reciperag search -q "smoky chickpea stew"
  reciperag search -q "citrus" --kind ingredient -k 5 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVar(&searchKind, "kind", "recipe", "kind to search: ingredient or recipe")
	searchCmd.Flags().IntVarP(&searchK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

type searchRow struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	kind, err := domain.ParseKind(searchKind)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.connectEmbedder(); err != nil {
		return err
	}

	k := searchK
	if k <= 0 {
		k = a.cfg.Retrieve.KRecipes
		if kind == domain.KindIngredient {
			k = a.cfg.Retrieve.KIngredients
		}
	}

	ctx := cmd.Context()
	hits, err := a.searcher.Search(ctx, kind, searchQuery, k)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.EntityID
	}
	labels := make(map[int64]string, len(hits))
	switch kind {
	case domain.KindRecipe:
		recipes, err := a.catalog.RecipesByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, r := range recipes {
			labels[r.ID] = r.Title
		}
	case domain.KindIngredient:
		ings, err := a.catalog.IngredientsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, ing := range ings {
			labels[ing.ID] = ing.Name
		}
	}

	rows := make([]searchRow, len(hits))
	for i, h := range hits {
		label, ok := labels[h.EntityID]
		if !ok {
			label = "(deleted)"
		}
		rows[i] = searchRow{ID: h.EntityID, Score: h.Score, Label: label}
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d %ss:\n\n", len(rows), kind)
	for i, r := range rows {
		fmt.Printf("%2d. [%.4f] #%d %s\n", i+1, r.Score, r.ID, r.Label)
	}
	return nil
}
