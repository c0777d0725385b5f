// Package openai adapts the official OpenAI Go SDK to the llm.Provider interface.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"autoqa/pkg/llm"
)

// DefaultModel is used when neither the client nor the request overrides it.
const DefaultModel = "gpt-4o-mini"

// Client wraps the official OpenAI client.
type Client struct {
	client openai.Client
	model  string
}

// New creates an OpenAI provider with the default model.
func New(apiKey string) *Client {
	return NewWithModel(apiKey, DefaultModel)
}

// NewWithModel creates an OpenAI provider with a specific default model.
func NewWithModel(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string {
	return "openai"
}

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Temperature:         openai.Float(float64(req.Temperature)),
	})
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeUpstream, "no choices in OpenAI response")
	}

	return llm.Response{
		Content:  resp.Choices[0].Message.Content,
		Provider: c.Name(),
		Model:    resp.Model,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// classifyError maps OpenAI SDK errors onto the closed taxonomy.
func classifyError(err error) *llm.Error {
	if status := llm.ExtractStatusCode(err.Error()); status != 0 {
		if errorType, ok := llm.ClassifyStatus(status); ok {
			return llm.NewErrorWithStatus(errorType, status, err.Error(), "")
		}
	}
	return llm.NewErrorWithCause(llm.ClassifyErr(err), err, "openai request failed")
}
