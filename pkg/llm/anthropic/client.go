// Package anthropic adapts the Anthropic SDK to the llm.Provider interface.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"autoqa/pkg/llm"
)

// DefaultModel is used when neither the client nor the request overrides it.
const DefaultModel = "claude-sonnet-4-5"

// Client wraps the Anthropic API client.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates an Anthropic provider with the default model.
func New(apiKey string) *Client {
	return NewWithModel(apiKey, DefaultModel)
}

// NewWithModel creates an Anthropic provider with a specific default model.
func NewWithModel(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string {
	return "anthropic"
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

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: req.SystemPrompt,
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeUpstream, "empty response from Anthropic API")
	}

	var content string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			content += block.AsText().Text
		}
	}

	return llm.Response{
		Content:  content,
		Provider: c.Name(),
		Model:    string(resp.Model),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// classifyError maps Anthropic SDK errors onto the closed taxonomy. The SDK
// embeds HTTP status codes in error messages, so classification goes by
// status first and message patterns second.
func classifyError(err error) *llm.Error {
	if status := llm.ExtractStatusCode(err.Error()); status != 0 {
		if errorType, ok := llm.ClassifyStatus(status); ok {
			return llm.NewErrorWithStatus(errorType, status, err.Error(), "")
		}
	}

	return llm.NewErrorWithCause(llm.ClassifyErr(err), err, "anthropic request failed")
}
