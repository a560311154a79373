package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"reciperag/internal/domain"
	"reciperag/internal/usecase"
)

var (
	rebuildKinds []string
	rebuildPrune bool
	rebuildQuiet bool
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed ingredients and recipes",
	Long: `Rebuild the embedding index of each kind from the catalog. Every entity
with text is embedded again and its stored vector replaced. Batches the
embedding service rejects are skipped and reported.

Examples:
  reciperag rebuild                   # Both kinds
  reciperag rebuild --kind recipe     # Recipes only
  reciperag rebuild --prune           # Also drop vectors of deleted entities`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().StringSliceVar(&rebuildKinds, "kind", nil, "kinds to rebuild: ingredient, recipe (default both)")
	rebuildCmd.Flags().BoolVar(&rebuildPrune, "prune", false, "delete vectors whose entity is gone (default from config)")
	rebuildCmd.Flags().BoolVar(&rebuildQuiet, "quiet", false, "no progress bar")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	kinds := make([]domain.Kind, 0, len(rebuildKinds))
	for _, raw := range rebuildKinds {
		kind, err := domain.ParseKind(raw)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		kinds = domain.Kinds
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if rebuildPrune {
		a.cfg.Index.PruneOrphans = true
	}
	// stored vectors from another model are cleared by the rebuild itself
	a.rebuilding = true
	if err := a.connectEmbedder(); err != nil {
		return err
	}

	progress := newRebuildProgress()
	var report usecase.ProgressFunc
	if !rebuildQuiet {
		report = progress.update
	}

	fmt.Printf("Embedding with %s (dimension %d)\n", a.embedder.ModelName(), a.embedder.Dimension())
	results, err := a.index.RebuildAll(cmd.Context(), kinds, report)
	progress.finish()

	fmt.Printf("\nRebuild complete:\n")
	for _, r := range results {
		fmt.Printf("  %-10s %-8s embedded %d of %d", r.Kind, r.Status, r.Embedded, r.Entities)
		if r.SkippedEmpty > 0 {
			fmt.Printf(", %d without text", r.SkippedEmpty)
		}
		if r.FailedBatches > 0 {
			fmt.Printf(", %d failed batches", r.FailedBatches)
		}
		if r.Pruned > 0 {
			fmt.Printf(", %d pruned", r.Pruned)
		}
		fmt.Printf(" (%s)\n", formatDuration(r.Duration))
		if r.Cleared {
			fmt.Printf("    cleared previous vectors: %s\n", r.ClearReason)
		}
		for _, e := range r.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	compat, err := a.index.Compatibility()
	if err != nil {
		return err
	}
	for _, c := range compat {
		if c.NeedsRebuild {
			fmt.Printf("\nWarning: %s vectors still need a rebuild: %s\n", c.Kind, c.Reason)
		}
	}

	fmt.Printf("\nVectors stored at: %s\n", a.bolt.Path())
	return nil
}

// rebuildProgress draws one progress bar per kind.
type rebuildProgress struct {
	mu    sync.Mutex
	kind  domain.Kind
	bar   *progressbar.ProgressBar
	start time.Time
}

func newRebuildProgress() *rebuildProgress {
	return &rebuildProgress{}
}

func (p *rebuildProgress) update(kind domain.Kind, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || p.kind != kind {
		if p.bar != nil {
			_ = p.bar.Finish()
		}
		p.kind = kind
		p.start = time.Now()
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%ss[reset]", kind)),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	_ = p.bar.Set(done)

	if done > 0 && done < total {
		elapsed := time.Since(p.start)
		rate := float64(done) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			p.bar.Describe(fmt.Sprintf("[cyan]%ss[reset] ETA: %s", kind, formatDuration(eta)))
		}
	}
}

func (p *rebuildProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
