// Package llm provides the provider-neutral contract for language model
// completions and the multi-provider fallback orchestrator built on it.
package llm

import (
	"context"
	"fmt"
)

const (
	// DefaultMaxTokens is the completion token budget used when a request
	// does not specify one.
	DefaultMaxTokens = 4096

	// TemperatureDefault is the default temperature for judgment tasks.
	TemperatureDefault = 0.3

	// TemperatureDeterministic is the temperature for fix generation.
	// Uses slight randomness (0.2) to avoid getting stuck in loops while
	// maintaining consistency.
	TemperatureDeterministic = 0.2
)

// Request represents a completion request in provider-neutral form.
// Each vendor client adapts this to its own wire schema.
type Request struct {
	Prompt       string
	SystemPrompt string  // Optional instructions, empty for none
	Model        string  // Optional override of the client's default model
	MaxTokens    int     // 0 means DefaultMaxTokens
	Temperature  float32 // [0, 2]
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response represents a completion response.
type Response struct {
	Content  string
	Provider string // Identifier of the vendor that produced the response
	Model    string // Concrete model that served the request
	Usage    Usage
}

// Provider is the closed interface every vendor client implements.
// Implementations translate their vendor's error surface into *llm.Error
// and must be safe for concurrent use.
type Provider interface {
	// Generate produces a completion synchronously. The context bounds the
	// call; implementations must honor cancellation and deadlines.
	Generate(ctx context.Context, req Request) (Response, error)

	// Name returns the stable provider identifier (e.g. "anthropic").
	Name() string
}

// NewRequest creates a request with default token budget and temperature.
func NewRequest(prompt string) Request {
	return Request{
		Prompt:      prompt,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// Validate checks request fields that are wrong for every vendor.
func (r *Request) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if r.Temperature < 0.0 || r.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
