package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"reciperag/internal/adapter/analyzer"
	"reciperag/internal/adapter/fs"
	"reciperag/internal/domain"
	"reciperag/internal/logging"
	"reciperag/internal/port"
)

// File is the on-disk layout of a corpus file.
type File struct {
	Ingredients []IngredientEntry `yaml:"ingredients"`
	Recipes     []RecipeEntry     `yaml:"recipes"`
}

type IngredientEntry struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Source   string `yaml:"source"`
}

type RecipeEntry struct {
	ID          int64    `yaml:"id"`
	Title       string   `yaml:"title"`
	Body        string   `yaml:"body"`
	Tags        []string `yaml:"tags"`
	Ingredients []string `yaml:"ingredients"`
}

// Result summarizes a load.
type Result struct {
	Files       int
	Ingredients int
	Recipes     int
	Skipped     int
}

// Loader writes YAML corpus files into a catalog.
type Loader struct {
	writer port.CatalogWriter
	walker *fs.Walker
	logger *zap.Logger
}

func NewLoader(writer port.CatalogWriter, walker *fs.Walker, logger *zap.Logger) *Loader {
	if walker == nil {
		walker = fs.NewWalker(nil, nil)
	}
	return &Loader{writer: writer, walker: walker, logger: logging.OrNop(logger)}
}

// Load seeds every corpus file under root. Entries without a name or
// title are skipped; any write error stops the load.
func (l *Loader) Load(ctx context.Context, root string) (*Result, error) {
	files, err := l.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	result := &Result{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return result, err
		}
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return result, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if err := l.apply(ctx, &f, result); err != nil {
			return result, fmt.Errorf("%s: %w", path, err)
		}
		result.Files++
		l.logger.Debug("seeded corpus file",
			zap.String("path", path),
			zap.Int("ingredients", len(f.Ingredients)),
			zap.Int("recipes", len(f.Recipes)))
	}

	return result, nil
}

func (l *Loader) apply(ctx context.Context, f *File, result *Result) error {
	for _, e := range f.Ingredients {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			result.Skipped++
			continue
		}
		_, err := l.writer.InsertIngredient(ctx, domain.Ingredient{
			ID:            e.ID,
			Name:          name,
			CanonicalName: analyzer.CanonicalizeName(name),
			Category:      e.Category,
			Source:        e.Source,
		})
		if err != nil {
			return err
		}
		result.Ingredients++
	}

	for _, e := range f.Recipes {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			result.Skipped++
			continue
		}

		lines := make([]domain.RecipeIngredient, 0, len(e.Ingredients))
		for _, raw := range e.Ingredients {
			lines = append(lines, domain.RecipeIngredient{
				Raw:       raw,
				Canonical: analyzer.CanonicalizeName(raw),
			})
		}

		_, err := l.writer.InsertRecipe(ctx, domain.Recipe{
			ID:    e.ID,
			Title: title,
			Body:  strings.TrimSpace(e.Body),
			Tags:  strings.Join(e.Tags, ", "),
		}, lines)
		if err != nil {
			return err
		}
		result.Recipes++
	}

	return nil
}
