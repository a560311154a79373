package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"reciperag/internal/adapter/fs"
	"reciperag/internal/adapter/seed"
)

var (
	seedIncludes []string
	seedExcludes []string
)

var seedCmd = &cobra.Command{
	Use:   "seed <dir>",
	Short: "Load YAML corpus files into the catalog",
	Long: `Load every corpus file under a directory into the catalog. A corpus file
holds an ingredients list and a recipes list; ingredient names are
canonicalized as they are stored. Run rebuild afterwards to embed them.

Examples:
  reciperag seed ./corpus
  reciperag seed ./corpus --include "recipes/**/*.yaml"`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringSliceVar(&seedIncludes, "include", nil, "glob patterns to load (default **/*.yaml, **/*.yml)")
	seedCmd.Flags().StringSliceVar(&seedExcludes, "exclude", nil, "glob patterns to skip")
}

func runSeed(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	loader := seed.NewLoader(a.catalog, fs.NewWalker(seedIncludes, seedExcludes), a.logger)
	result, err := loader.Load(cmd.Context(), root)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	fmt.Printf("Seeding complete:\n")
	fmt.Printf("  Files:       %d\n", result.Files)
	fmt.Printf("  Ingredients: %d\n", result.Ingredients)
	fmt.Printf("  Recipes:     %d\n", result.Recipes)
	if result.Skipped > 0 {
		fmt.Printf("  Skipped:     %d (no name or title)\n", result.Skipped)
	}
	fmt.Printf("\nCatalog stored at: %s\n", a.catalog.Path())
	return nil
}
