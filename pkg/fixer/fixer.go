package fixer

import (
	"context"
	"fmt"

	"autoqa/pkg/code"
	"autoqa/pkg/llm"
	"autoqa/pkg/logx"
	"autoqa/pkg/runner"
	"autoqa/pkg/utils"
)

// Generator is the slice of the provider chain the fixer needs.
type Generator interface {
	GenerateWithFallback(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Fixer prompts a model with failing tests and parses the response into
// proposed edits.
type Fixer struct {
	generator Generator
	builder   *promptBuilder
	logger    *logx.Logger
}

// Option configures a Fixer.
type Option func(*Fixer)

// WithPromptBudget overrides the default prompt token budget.
func WithPromptBudget(tokens int) Option {
	return func(f *Fixer) {
		f.builder.budget = tokens
	}
}

// New creates a Fixer backed by the given provider chain.
func New(generator Generator, opts ...Option) (*Fixer, error) {
	counter, err := utils.NewTokenCounter()
	if err != nil {
		// Budgeting degrades to character estimation; not fatal.
		logx.Warnf("token counter unavailable, using character estimation: %v", err)
	}
	f := &Fixer{
		generator: generator,
		builder:   newPromptBuilder(counter, defaultPromptBudget),
		logger:    logx.NewLogger("fixer"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// strategyHints narrow the retry prompt when a response carries no usable
// fix blocks, keyed by the classified failure strategy.
//
//nolint:gochecknoglobals // Static instruction table
var strategyHints = map[Strategy]string{
	StrategyNilDereference:  "guard the dereferenced value with an explicit nil check before it is used",
	StrategyAssertion:       "make the implementation return the value the assertion expects",
	StrategyTypeMismatch:    "insert the conversion the mismatched types need",
	StrategyMissingFunction: "define the function or method the failing test calls",
	StrategyLogicError:      "correct the conditional or arithmetic the failing test exercises",
	StrategyGeneric:         "make the smallest change that lets the failing test pass",
}

// ProposeFixes asks the model for edits addressing the current failures.
// A response containing no parseable fix blocks triggers one retry carrying
// a strategy hint classified from the failure message; when that also yields
// nothing the result is an empty slice with a nil error. Only transport-level
// failure of the first request is an error.
func (f *Fixer) ProposeFixes(ctx context.Context, snap *code.Snapshot, results *runner.Results) ([]Fix, error) {
	if results.AllPassed() {
		return nil, nil
	}

	req := llm.Request{
		Prompt:       f.builder.build(snap, results),
		SystemPrompt: systemPrompt,
		MaxTokens:    llm.DefaultMaxTokens,
		Temperature:  llm.TemperatureDeterministic,
	}

	resp, err := f.generator.GenerateWithFallback(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fix generation failed: %w", err)
	}

	fixes := f.validate(snap, parseFixes(resp.Content))
	if len(fixes) == 0 {
		f.logger.Warn("response from %s contained no usable fix blocks, retrying with a strategy hint", resp.Provider)
		fixes = f.fallbackFixes(ctx, snap, results, req)
	}
	if len(fixes) > 0 {
		f.logger.Info("parsed %d fix(es) from %s/%s", len(fixes), resp.Provider, resp.Model)
	}
	return fixes, nil
}

// fallbackFixes reissues the request once with a strategy-specific
// instruction derived from the first failure's message. Best effort: a
// transport failure or a second unusable response forfeits the attempt and
// the caller sees an empty slice.
func (f *Fixer) fallbackFixes(ctx context.Context, snap *code.Snapshot, results *runner.Results, req llm.Request) []Fix {
	strategy := StrategyGeneric
	if len(results.Failures) > 0 {
		strategy = ClassifyStrategy(results.Failures[0].Message)
	}
	req.Prompt += fmt.Sprintf(
		"\n\nYour previous reply contained no fix blocks. The failure classifies as a %q defect: %s. Reply with fix blocks only.",
		strategy, strategyHints[strategy])

	resp, err := f.generator.GenerateWithFallback(ctx, req)
	if err != nil {
		f.logger.Warn("strategy-hint retry failed: %v", err)
		return nil
	}
	fixes := f.validate(snap, parseFixes(resp.Content))
	if len(fixes) == 0 {
		f.logger.Warn("strategy-hint retry from %s also contained no usable fix blocks", resp.Provider)
	}
	return fixes
}

// validate drops fixes targeting files outside the snapshot and fixes that
// would edit test files.
func (f *Fixer) validate(snap *code.Snapshot, fixes []Fix) []Fix {
	testFiles := snap.TestFiles()
	valid := fixes[:0]
	for _, fix := range fixes {
		if _, isTest := testFiles[fix.TargetFile]; isTest {
			f.logger.Warn("dropping fix targeting test file %s", fix.TargetFile)
			continue
		}
		if !snap.HasFile(fix.TargetFile) {
			f.logger.Warn("dropping fix targeting unknown file %s", fix.TargetFile)
			continue
		}
		valid = append(valid, fix)
	}
	return valid
}
