package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog and vector counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.index.Stats(cmd.Context())
	if err != nil {
		return err
	}
	info, err := a.bolt.GetSchemaInfo()
	if err != nil {
		return err
	}

	fmt.Printf("Catalog: %s\n", a.catalog.Path())
	fmt.Printf("Vectors: %s (schema v%d)\n", a.bolt.Path(), info.Version)
	fmt.Println()
	for _, s := range stats {
		model := "(never built)"
		if fp := info.Fingerprints[s.Kind]; fp != nil {
			model = fp.String()
		}
		fmt.Printf("  %-10s %6d entities %6d vectors  %s\n", s.Kind, s.Entities, s.Vectors, model)
	}
	return nil
}
