package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reciperag/internal/usecase"
)

var (
	contextQuery string
	contextKRec  int
	contextKIng  int
	contextJSON  bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the grounding context retrieved for a request",
	Long: `Retrieve recipes for a request (recipes first, then recipes that use
matching ingredients) and print them as the context block given to the
generator.

Examples:
  reciperag context -q "something with leftover rice"
  reciperag context -q "vegan dessert" --k-rec 4 --json`,
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVarP(&contextQuery, "query", "q", "", "request text (required)")
	contextCmd.Flags().IntVar(&contextKRec, "k-rec", 0, "recipes to retrieve directly (default from config)")
	contextCmd.Flags().IntVar(&contextKIng, "k-ing", 0, "ingredients to backfill through (default from config)")
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "output as JSON")
	contextCmd.MarkFlagRequired("query")
}

func runContext(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// the generation service is not called here
	a.cfg.Generation.Provider = "none"
	if err := a.connectGenerator(); err != nil {
		return err
	}

	result, err := a.generate.Ground(cmd.Context(), usecase.PlanRequest{
		Query:        contextQuery,
		KRecipes:     contextKRec,
		KIngredients: contextKIng,
	})
	if err != nil {
		return err
	}

	if contextJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	r := result.Retrieval
	fmt.Fprintf(os.Stderr, "Retrieved %d recipes (%d direct, %d via ingredients)\n\n",
		len(result.RetrievedIDs), len(r.Primary), len(r.Backfill))
	if result.Context == "" {
		fmt.Println(usecase.NoContextPlaceholder)
		return nil
	}
	fmt.Println(result.Context)
	return nil
}
