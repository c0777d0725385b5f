package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"autoqa/pkg/logx"
)

// ErrNoProviders is returned when GenerateWithFallback is called on an
// orchestrator configured with zero providers. No network call is made.
var ErrNoProviders = errors.New("no providers configured")

// DefaultCallTimeout bounds one provider call when the caller's context
// carries no tighter deadline.
const DefaultCallTimeout = 60 * time.Second

// ProviderFailure records one provider's failure during a fallback attempt.
type ProviderFailure struct {
	Provider string
	Err      error
}

// FallbackError aggregates the failure of every configured provider.
type FallbackError struct {
	Failures []ProviderFailure
}

// Error enumerates each provider's failure reason.
func (e *FallbackError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for i := range e.Failures {
		f := &e.Failures[i]
		parts = append(parts, fmt.Sprintf("%s: %v", f.Provider, f.Err))
	}
	return fmt.Sprintf("all %d providers failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual failures for errors.Is / errors.As.
func (e *FallbackError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for i := range e.Failures {
		errs = append(errs, e.Failures[i].Err)
	}
	return errs
}

// Recorder receives per-attempt observations. Implemented by pkg/metrics;
// the nil recorder is a no-op.
type Recorder interface {
	ObserveGenerate(provider, model string, usage Usage, success bool, errorType string, duration time.Duration)
	IncFallback(fromProvider string)
}

// Orchestrator tries an ordered, immutable list of providers until one
// succeeds. It holds no mutable state beyond its configuration and is safe
// for concurrent use by any number of independent cycles.
type Orchestrator struct {
	providers   []Provider
	recorder    Recorder
	callTimeout time.Duration
	logger      *logx.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCallTimeout overrides the per-provider call timeout. Zero disables
// the orchestrator's own deadline; the caller's context still applies.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// NewOrchestrator creates an orchestrator over the given providers, ordered
// fastest/cheapest first. The slice is copied; later mutation of the
// caller's slice does not affect the orchestrator.
func NewOrchestrator(providers []Provider, opts ...Option) *Orchestrator {
	return NewOrchestratorWithRecorder(providers, nil, opts...)
}

// NewOrchestratorWithRecorder creates an orchestrator that reports each
// provider attempt to the given recorder.
func NewOrchestratorWithRecorder(providers []Provider, recorder Recorder, opts ...Option) *Orchestrator {
	copied := make([]Provider, len(providers))
	copy(copied, providers)
	o := &Orchestrator{
		providers:   copied,
		recorder:    recorder,
		callTimeout: DefaultCallTimeout,
		logger:      logx.NewLogger("llm"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Providers returns the configured provider names in priority order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// GenerateWithFallback tries providers strictly in priority order. On any
// error from the current provider it logs and advances to the next; the
// first success is returned unmodified. A provider is never retried within
// one call, so worst-case latency is bounded by the number of providers
// times the per-provider timeout. When every provider fails, the returned
// *FallbackError enumerates each failure in order. Caller cancellation ends
// the chain with the context error, joined with any failures already
// collected; providers never contacted are not listed.
func (o *Orchestrator) GenerateWithFallback(ctx context.Context, req Request) (Response, error) {
	if len(o.providers) == 0 {
		return Response{}, ErrNoProviders
	}
	if err := req.Validate(); err != nil {
		return Response{}, NewErrorWithCause(ErrorTypeInvalidRequest, err, "invalid request")
	}

	var failures []ProviderFailure

	for i, provider := range o.providers {
		if err := ctx.Err(); err != nil {
			// Cancellation ends the chain. The remaining providers were
			// never contacted and must not appear among the failures.
			if len(failures) == 0 {
				return Response{}, err
			}
			return Response{}, errors.Join(err, &FallbackError{Failures: failures})
		}

		start := time.Now()
		resp, err := o.callProvider(ctx, provider, req)
		duration := time.Since(start)

		if err == nil {
			if o.recorder != nil {
				o.recorder.ObserveGenerate(provider.Name(), resp.Model, resp.Usage, true, "", duration)
			}
			o.logger.Debug("provider %s succeeded after %d failed attempts", provider.Name(), i)
			return resp, nil
		}

		if o.recorder != nil {
			o.recorder.ObserveGenerate(provider.Name(), req.Model, Usage{}, false, TypeOf(err).String(), duration)
			if i < len(o.providers)-1 {
				o.recorder.IncFallback(provider.Name())
			}
		}
		o.logger.Warn("provider %s failed (%s), advancing to next: %v", provider.Name(), TypeOf(err), err)
		failures = append(failures, ProviderFailure{Provider: provider.Name(), Err: err})
	}

	return Response{}, &FallbackError{Failures: failures}
}

// callProvider bounds one provider attempt with the per-call timeout so a
// hung vendor endpoint cannot stall the whole chain.
func (o *Orchestrator) callProvider(ctx context.Context, provider Provider, req Request) (Response, error) {
	if o.callTimeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
		ctx = callCtx
	}
	return provider.Generate(ctx, req)
}
