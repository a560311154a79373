package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reciperag/internal/domain"
	"reciperag/internal/port"
)

type fakeGenerator struct {
	prompt string
	reply  string
	err    error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func (g *fakeGenerator) ModelName() string { return "fake-chef" }

func newGenerateUseCase(t *testing.T, searcher *stubSearcher, gen *fakeGenerator) *GenerateUseCase {
	t.Helper()
	catalog := newKitchen(t)
	var generator port.TextGenerator
	if gen != nil {
		generator = gen
	}
	return NewGenerateUseCase(
		NewRetrieveUseCase(searcher, catalog, 0, nil),
		NewPackUseCase(catalog),
		generator,
		8, 15,
		nil,
	)
}

func TestPlan_GroundsPromptInRetrievedRecipes(t *testing.T) {
	gen := &fakeGenerator{reply: "Title: Tomato Basil Soup"}
	searcher := &stubSearcher{hits: map[domain.Kind][]domain.SearchHit{
		domain.KindRecipe: hits(1),
	}}
	uc := newGenerateUseCase(t, searcher, gen)

	res, err := uc.Plan(context.Background(), PlanRequest{
		Query:       "warm tomato dinner",
		Constraints: domain.Constraints{Calories: 500, Diet: "vegetarian", Allergens: []string{"nuts", " ", "dairy"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.GeneratedText != "Title: Tomato Basil Soup" || res.Model != "fake-chef" {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.RetrievedIDs) != 1 || res.RetrievedIDs[0] != 1 {
		t.Errorf("unexpected retrieved ids: %v", res.RetrievedIDs)
	}
	if res.Prompt != "" {
		t.Error("prompt should be omitted unless requested")
	}
	for _, want := range []string{
		"User asked: warm tomato dinner",
		"- Calories: 500",
		"- Diet: vegetarian",
		"- Allergens to avoid: nuts, dairy",
		"Title: Tomato Soup\nTags: soup\nMethod: Simmer tomatoes.\n",
	} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt is missing %q:\n%s", want, gen.prompt)
		}
	}
	if searcher.asked[domain.KindRecipe] != 8 {
		t.Errorf("expected default k_rec=8, got %d", searcher.asked[domain.KindRecipe])
	}
}

func TestPlan_UsesPlaceholderWhenNothingIsFound(t *testing.T) {
	gen := &fakeGenerator{reply: "something"}
	uc := newGenerateUseCase(t, &stubSearcher{}, gen)

	res, err := uc.Plan(context.Background(), PlanRequest{Query: "dragon stew"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Context != NoContextPlaceholder {
		t.Errorf("expected placeholder context, got %q", res.Context)
	}
	if !strings.Contains(gen.prompt, NoContextPlaceholder) {
		t.Error("placeholder missing from prompt")
	}
	if !strings.Contains(gen.prompt, "- Diet: any") || !strings.Contains(gen.prompt, "- Allergens to avoid: none") {
		t.Errorf("absent constraints should read any/none:\n%s", gen.prompt)
	}
	if res.RetrievedIDs == nil || len(res.RetrievedIDs) != 0 {
		t.Errorf("expected empty id list, got %#v", res.RetrievedIDs)
	}
}

func TestPlan_DegradesWhenRetrievalFails(t *testing.T) {
	gen := &fakeGenerator{reply: "fallback recipe"}
	searcher := &stubSearcher{errs: map[domain.Kind]error{
		domain.KindRecipe: domain.NewProviderError("embed_query", 0, 0, errors.New("unreachable")),
	}}
	uc := newGenerateUseCase(t, searcher, gen)

	res, err := uc.Plan(context.Background(), PlanRequest{Query: "pasta"})
	if err != nil {
		t.Fatalf("retrieval failure should not fail generation: %v", err)
	}
	if res.RetrievalError == "" {
		t.Error("expected the retrieval failure to be reported")
	}
	if res.Context != NoContextPlaceholder || res.GeneratedText != "fallback recipe" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestPlan_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	uc := newGenerateUseCase(t, &stubSearcher{}, gen)

	_, err := uc.Plan(context.Background(), PlanRequest{Query: "pasta"})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Op != "generate" {
		t.Errorf("expected a generate ProviderError, got %v", err)
	}
}

func TestPlan_WithoutGeneratorReturnsPrompt(t *testing.T) {
	uc := newGenerateUseCase(t, &stubSearcher{}, nil)

	res, err := uc.Plan(context.Background(), PlanRequest{Query: "pasta"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Prompt, "User asked: pasta") {
		t.Errorf("expected rendered prompt, got %q", res.Prompt)
	}
	if res.GeneratedText != "" {
		t.Errorf("expected no generated text, got %q", res.GeneratedText)
	}
}

func TestPlan_EmptyQuery(t *testing.T) {
	uc := newGenerateUseCase(t, &stubSearcher{}, &fakeGenerator{})
	if _, err := uc.Plan(context.Background(), PlanRequest{Query: "  "}); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestGround_ReturnsRetrievalErrors(t *testing.T) {
	boom := errors.New("boom")
	searcher := &stubSearcher{errs: map[domain.Kind]error{domain.KindRecipe: boom}}
	uc := newGenerateUseCase(t, searcher, nil)

	if _, err := uc.Ground(context.Background(), PlanRequest{Query: "pasta"}); !errors.Is(err, boom) {
		t.Errorf("expected search error, got %v", err)
	}
}

func TestRenderPrompt_CaloriesDefault(t *testing.T) {
	prompt, err := RenderPrompt("x", domain.Constraints{}, "ctx")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "- Calories: any") {
		t.Errorf("expected calories any:\n%s", prompt)
	}
	if !strings.HasSuffix(strings.TrimSpace(prompt), "Do not include any extra explanations or notes") {
		t.Error("prompt should end with the formatting instruction")
	}
}
