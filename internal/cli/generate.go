package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reciperag/internal/domain"
	"reciperag/internal/usecase"
)

var (
	generateQuery      string
	generateCalories   int
	generateDiet       string
	generateAllergens  []string
	generateKRec       int
	generateKIng       int
	generateShowPrompt bool
	generateJSON       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a recipe grounded in retrieved recipes",
	Long: `Retrieve recipes for a request, assemble them into context and ask the
generation model for a complete recipe that honours the given constraints.
With generation.provider set to none, the prompt is printed instead.

Examples:
  reciperag generate -q "high-protein breakfast" --calories 500
  reciperag generate -q "weeknight curry" --diet vegan --allergen peanuts --allergen soy`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generateQuery, "query", "q", "", "request text (required)")
	generateCmd.Flags().IntVar(&generateCalories, "calories", 0, "calorie target")
	generateCmd.Flags().StringVar(&generateDiet, "diet", "", "diet, e.g. vegetarian")
	generateCmd.Flags().StringArrayVar(&generateAllergens, "allergen", nil, "allergen to avoid (repeatable)")
	generateCmd.Flags().IntVar(&generateKRec, "k-rec", 0, "recipes to retrieve directly (default from config)")
	generateCmd.Flags().IntVar(&generateKIng, "k-ing", 0, "ingredients to backfill through (default from config)")
	generateCmd.Flags().BoolVar(&generateShowPrompt, "show-prompt", false, "print the prompt sent to the model")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "output as JSON")
	generateCmd.MarkFlagRequired("query")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.connectGenerator(); err != nil {
		return err
	}
	a.generate.IncludePrompt(generateShowPrompt)

	result, err := a.generate.Plan(cmd.Context(), usecase.PlanRequest{
		Query: generateQuery,
		Constraints: domain.Constraints{
			Calories:  generateCalories,
			Diet:      generateDiet,
			Allergens: generateAllergens,
		},
		KRecipes:     generateKRec,
		KIngredients: generateKIng,
	})
	if err != nil {
		return err
	}

	if generateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.RetrievalError != "" {
		fmt.Fprintf(os.Stderr, "Warning: retrieval failed, answer is not grounded: %s\n", result.RetrievalError)
	} else {
		fmt.Fprintf(os.Stderr, "Grounded in %d recipes: %v\n", len(result.RetrievedIDs), result.RetrievedIDs)
	}

	if result.Prompt != "" {
		if result.GeneratedText == "" {
			fmt.Println(result.Prompt)
			return nil
		}
		fmt.Printf("=== Prompt ===\n%s\n=== %s ===\n", result.Prompt, result.Model)
	}
	fmt.Println(result.GeneratedText)
	return nil
}
