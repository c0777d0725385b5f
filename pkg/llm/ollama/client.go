// Package ollama adapts the Ollama API client to the llm.Provider interface.
// Ollama is a local runtime for open-source models, useful as the last link
// in a fallback chain because it has no quota to exhaust.
package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"autoqa/pkg/llm"
)

const (
	// DefaultModel is used when neither the client nor the request overrides it.
	DefaultModel = "qwen2.5-coder:7b"

	// DefaultHost is the standard local Ollama server address.
	DefaultHost = "http://localhost:11434"
)

// Client wraps the Ollama API client.
type Client struct {
	client *api.Client
	model  string
}

// New creates an Ollama provider against the default local server.
func New() *Client {
	return NewWithModel(DefaultHost, DefaultModel)
}

// NewWithModel creates an Ollama provider for a specific server and model.
func NewWithModel(hostURL, model string) *Client {
	parsedURL, err := url.Parse(hostURL)
	if err != nil {
		// Fall back to the default host if the URL is invalid.
		parsedURL, _ = url.Parse(DefaultHost)
	}

	return &Client{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string {
	return "ollama"
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

	messages := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": maxTokens,
		},
	}

	var response api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	if response.Message.Content == "" {
		return llm.Response{}, llm.NewError(llm.ErrorTypeUpstream, "empty response from Ollama")
	}

	return llm.Response{
		Content:  response.Message.Content,
		Provider: c.Name(),
		Model:    model,
		Usage: llm.Usage{
			PromptTokens:     response.PromptEvalCount,
			CompletionTokens: response.EvalCount,
			TotalTokens:      response.PromptEvalCount + response.EvalCount,
		},
	}, nil
}

// classifyError maps Ollama client errors onto the closed taxonomy. A local
// server that is not running shows up as a connection error, which is an
// upstream failure from the chain's point of view.
func classifyError(err error) *llm.Error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
		return llm.NewErrorWithCause(llm.ErrorTypeUpstream, err, "ollama server unreachable")
	}
	if strings.Contains(msg, "model") && strings.Contains(msg, "not found") {
		return llm.NewErrorWithCause(llm.ErrorTypeInvalidRequest, err, "model not available on ollama server")
	}
	return llm.NewErrorWithCause(llm.ClassifyErr(err), err, "ollama request failed")
}
