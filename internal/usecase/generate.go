package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reciperag/internal/domain"
	"reciperag/internal/logging"
	"reciperag/internal/port"
)

// PlanRequest is a recipe generation request.
type PlanRequest struct {
	Query        string             `json:"query"`
	Constraints  domain.Constraints `json:"constraints"`
	KRecipes     int                `json:"k_rec"`
	KIngredients int                `json:"k_ing"`
}

// PlanResult carries everything a generation produced, including the
// grounding it was based on.
type PlanResult struct {
	RetrievedIDs   []int64    `json:"retrieved_recipe_ids"`
	Retrieval      *Retrieval `json:"retrieval,omitempty"`
	Context        string     `json:"context"`
	Prompt         string     `json:"prompt,omitempty"`
	GeneratedText  string     `json:"generated_text"`
	Model          string     `json:"model,omitempty"`
	RetrievalError string     `json:"retrieval_error,omitempty"`
}

// GenerateUseCase runs retrieval, context assembly and text generation.
type GenerateUseCase struct {
	retrieve      *RetrieveUseCase
	pack          *PackUseCase
	generator     port.TextGenerator
	kRecipes      int
	kIngredients  int
	includePrompt bool
	logger        *zap.Logger
}

// NewGenerateUseCase creates a new generate use case. A nil generator
// makes Plan stop after rendering the prompt.
func NewGenerateUseCase(
	retrieve *RetrieveUseCase,
	pack *PackUseCase,
	generator port.TextGenerator,
	kRecipes, kIngredients int,
	logger *zap.Logger,
) *GenerateUseCase {
	return &GenerateUseCase{
		retrieve:     retrieve,
		pack:         pack,
		generator:    generator,
		kRecipes:     kRecipes,
		kIngredients: kIngredients,
		logger:       logging.OrNop(logger),
	}
}

// IncludePrompt makes Plan return the rendered prompt alongside the text.
func (u *GenerateUseCase) IncludePrompt(v bool) {
	u.includePrompt = v
}

func (u *GenerateUseCase) limits(req PlanRequest) (int, int) {
	kRec, kIng := req.KRecipes, req.KIngredients
	if kRec <= 0 {
		kRec = u.kRecipes
	}
	if kIng <= 0 {
		kIng = u.kIngredients
	}
	return kRec, kIng
}

// Ground retrieves and assembles context for a query without generating.
// Unlike Plan it fails on retrieval errors.
func (u *GenerateUseCase) Ground(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	kRec, kIng := u.limits(req)

	retrieval, err := u.retrieve.Retrieve(ctx, req.Query, kRec, kIng)
	if err != nil {
		return nil, err
	}
	ids := retrieval.IDs()
	text, err := u.pack.Assemble(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &PlanResult{RetrievedIDs: ids, Retrieval: retrieval, Context: text}, nil
}

// Plan generates a recipe for req. Retrieval or assembly failures do not
// stop generation: the placeholder context is used and the failure is
// reported in RetrievalError. A generation failure is returned as a
// *domain.ProviderError.
func (u *GenerateUseCase) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	result, err := u.Ground(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		u.logger.Warn("retrieval failed, generating without grounding", zap.Error(err))
		result = &PlanResult{RetrievalError: err.Error()}
	}
	if result.RetrievedIDs == nil {
		result.RetrievedIDs = []int64{}
	}
	if result.Context == "" {
		result.Context = NoContextPlaceholder
	}

	prompt, err := RenderPrompt(req.Query, req.Constraints, result.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	if u.generator == nil {
		result.Prompt = prompt
		return result, nil
	}
	if u.includePrompt {
		result.Prompt = prompt
	}

	text, err := u.generator.Generate(ctx, prompt)
	if err != nil {
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			err = domain.NewProviderError("generate", 0, 0, err)
		}
		return result, err
	}
	result.GeneratedText = text
	result.Model = u.generator.ModelName()

	u.logger.Info("recipe generated",
		zap.Int("recipes", len(result.RetrievedIDs)),
		zap.Bool("grounded", result.Context != NoContextPlaceholder),
		zap.String("model", result.Model))

	return result, nil
}
