package port

import "context"

// TextGenerator turns a prompt into generated text.
type TextGenerator interface {
	// Generate generates text based on the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
