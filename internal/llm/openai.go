package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/temirov/article-drafter/internal/pipeline"
)

// ClientConfig configures the chat-completions client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// CompletionRequest is one structured-output chat completion.
type CompletionRequest struct {
	Model             string
	SystemPrompt      string
	UserPrompt        string
	MaxTokens         int
	Temperature       float64
	SchemaName        string
	SchemaDescription string
	Schema            map[string]any
}

// Client calls an OpenAI-compatible chat-completions endpoint and classifies
// failures into retryable and permanent backend errors. The SDK's own retries
// are disabled; retry policy belongs to the executor.
type Client struct {
	sdk openai.Client
}

func NewClient(config ClientConfig) (*Client, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, errors.New("llm api key is empty")
	}
	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(config.BaseURL); baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	if config.HTTPClient != nil {
		options = append(options, option.WithHTTPClient(config.HTTPClient))
	}
	return &Client{sdk: openai.NewClient(options...)}, nil
}

func truncateForLog(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// Complete returns the trimmed message content of the first choice.
func (c *Client) Complete(ctx context.Context, request CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(request.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(strings.TrimSpace(request.SystemPrompt)),
			openai.UserMessage(strings.TrimSpace(request.UserPrompt)),
		},
	}
	if request.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(request.MaxTokens))
	}
	if request.Temperature > 0 {
		params.Temperature = openai.Float(request.Temperature)
	}
	if request.Schema != nil {
		jsonSchema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   request.SchemaName,
			Schema: request.Schema,
			Strict: openai.Bool(true),
		}
		if request.SchemaDescription != "" {
			jsonSchema.Description = openai.String(request.SchemaDescription)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
		}
	}

	completion, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}
	if len(completion.Choices) == 0 {
		return "", pipeline.NewRetryableBackendError(0, errors.New("chat completion returned no choices"))
	}

	choice := completion.Choices[0]
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return "", pipeline.NewPermanentBackendError(0, fmt.Errorf("chat completion refusal: %s", truncateForLog(refusal, 240)))
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", pipeline.NewPermanentBackendError(0, fmt.Errorf("chat completion returned empty message (finish_reason=%s)", choice.FinishReason))
	}
	return content, nil
}

// classifyError maps SDK failures onto backend errors: rate limits and server
// errors are retryable, other HTTP statuses are not, and transport failures
// are retryable. Context errors pass through unchanged.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("llm http error %d: %s", apiErr.StatusCode, truncateForLog(apiErr.Error(), 512))
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return pipeline.NewRetryableBackendError(apiErr.StatusCode, wrapped)
		}
		return pipeline.NewPermanentBackendError(apiErr.StatusCode, wrapped)
	}
	return pipeline.NewRetryableBackendError(0, err)
}
