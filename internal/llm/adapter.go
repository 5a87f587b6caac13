package llm

import (
	"context"
	"strings"

	"github.com/temirov/article-drafter/internal/pipeline"
)

// Completer is the chat-completion call the Adapter depends on. *Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, request CompletionRequest) (string, error)
}

// Adapter implements pipeline.Backend on top of a Completer: it renders the
// prompts for the requested schema and asks for strict structured output.
type Adapter struct {
	Client        Completer
	DefaultModel  string
	DefaultTemp   float64
	DefaultTokens int
}

func (a Adapter) Invoke(ctx context.Context, request pipeline.Request) (pipeline.Response, error) {
	systemPrompt, err := renderSystemPrompt(request)
	if err != nil {
		return pipeline.Response{}, pipeline.NewPermanentBackendError(0, err)
	}
	userPrompt, err := renderUserPrompt(request)
	if err != nil {
		return pipeline.Response{}, pipeline.NewPermanentBackendError(0, err)
	}

	model := request.Settings.Model
	if strings.TrimSpace(model) == "" {
		model = a.DefaultModel
	}

	completion := CompletionRequest{
		Model:             model,
		SystemPrompt:      systemPrompt,
		UserPrompt:        userPrompt,
		MaxTokens:         chooseInt(request.Settings.MaxTokens, a.DefaultTokens),
		SchemaName:        request.Schema.Name(),
		SchemaDescription: request.Schema.Purpose(),
		Schema:            request.Schema.OutputJSONSchema(),
	}

	// Many current models only accept the default temperature (1), so 0 and 1
	// are left to the server default.
	resolvedTemp := chooseFloat(request.Settings.Temperature, a.DefaultTemp)
	if resolvedTemp != 0 && resolvedTemp != 1 {
		completion.Temperature = resolvedTemp
	}

	out, err := a.Client.Complete(ctx, completion)
	if err != nil {
		return pipeline.Response{}, err
	}
	return pipeline.Response{RawText: out}, nil
}

func chooseInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

func chooseFloat(a, b float64) float64 {
	if a > 0 {
		return a
	}
	return b
}
