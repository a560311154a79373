package usecase

import (
	_ "embed"
	"strconv"
	"strings"
	"text/template"

	"reciperag/internal/domain"
)

//go:embed templates/recipe_prompt.txt
var recipePromptText string

var recipePrompt = template.Must(template.New("recipe").Parse(recipePromptText))

type promptData struct {
	Query     string
	Calories  string
	Diet      string
	Allergens string
	Context   string
}

// RenderPrompt fills the recipe prompt. Absent constraints read "any",
// or "none" for allergens.
func RenderPrompt(query string, c domain.Constraints, context string) (string, error) {
	data := promptData{
		Query:     query,
		Calories:  "any",
		Diet:      "any",
		Allergens: "none",
		Context:   context,
	}
	if c.Calories > 0 {
		data.Calories = strconv.Itoa(c.Calories)
	}
	if d := strings.TrimSpace(c.Diet); d != "" {
		data.Diet = d
	}

	var allergens []string
	for _, a := range c.Allergens {
		if a = strings.TrimSpace(a); a != "" {
			allergens = append(allergens, a)
		}
	}
	if len(allergens) > 0 {
		data.Allergens = strings.Join(allergens, ", ")
	}

	var b strings.Builder
	if err := recipePrompt.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
