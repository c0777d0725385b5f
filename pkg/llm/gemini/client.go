// Package gemini adapts the Google GenAI SDK to the llm.Provider interface.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"autoqa/pkg/llm"
)

// DefaultModel is used when neither the client nor the request overrides it.
const DefaultModel = "gemini-2.0-flash"

// Client wraps the Google GenAI client. The underlying SDK client needs a
// context to construct, so it is created lazily on first use.
type Client struct {
	apiKey string
	model  string

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

// New creates a Gemini provider with the default model.
func New(apiKey string) *Client {
	return NewWithModel(apiKey, DefaultModel)
}

// NewWithModel creates a Gemini provider with a specific default model.
func NewWithModel(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string {
	return "gemini"
}

func (c *Client) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.initOnce.Do(func() {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			c.initErr = llm.NewErrorWithCause(llm.ErrorTypeAuth, err, "failed to create Gemini client")
			return
		}
		c.client = client
	})
	return c.client, c.initErr
}

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return llm.Response{}, err
	}

	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	temperature := req.Temperature
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
		//nolint:gosec // MaxTokens is validated at the request layer
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeUpstream, "no candidates in Gemini response")
	}

	content := result.Text()
	if content == "" {
		return llm.Response{}, llm.NewError(llm.ErrorTypeUpstream,
			fmt.Sprintf("empty Gemini response (finish reason: %v)", result.Candidates[0].FinishReason))
	}

	usage := llm.Usage{}
	if result.UsageMetadata != nil {
		usage.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(result.UsageMetadata.TotalTokenCount)
	}

	return llm.Response{
		Content:  content,
		Provider: c.Name(),
		Model:    model,
		Usage:    usage,
	}, nil
}

// classifyError maps GenAI SDK errors onto the closed taxonomy. The SDK
// reports API failures with the HTTP status embedded in the message.
func classifyError(err error) *llm.Error {
	if status := llm.ExtractStatusCode(err.Error()); status != 0 {
		if errorType, ok := llm.ClassifyStatus(status); ok {
			return llm.NewErrorWithStatus(errorType, status, err.Error(), "")
		}
	}
	return llm.NewErrorWithCause(llm.ClassifyErr(err), err, "gemini request failed")
}
