// Package fixer turns structured test failures into proposed code edits by
// prompting a language model and parsing its response into verbatim
// find-and-replace fixes.
package fixer

import "strings"

// Strategy labels the kind of defect a fix targets. It drives the default
// confidence when the model does not report one.
type Strategy string

const (
	StrategyAssertion       Strategy = "assertion"
	StrategyNilDereference  Strategy = "nil-dereference"
	StrategyTypeMismatch    Strategy = "type-mismatch"
	StrategyMissingFunction Strategy = "missing-function"
	StrategyLogicError      Strategy = "logic-error"
	StrategyGeneric         Strategy = "generic"
)

// strategyConfidence is the prior confidence per strategy. Narrow, mechanical
// defects score higher than open-ended logic rewrites.
//
//nolint:gochecknoglobals // Static scoring table
var strategyConfidence = map[Strategy]float64{
	StrategyNilDereference:  0.8,
	StrategyAssertion:       0.7,
	StrategyTypeMismatch:    0.6,
	StrategyMissingFunction: 0.5,
	StrategyLogicError:      0.4,
	StrategyGeneric:         0.3,
}

// Confidence returns the prior confidence for a strategy.
func (s Strategy) Confidence() float64 {
	if c, ok := strategyConfidence[s]; ok {
		return c
	}
	return strategyConfidence[StrategyGeneric]
}

// ClassifyStrategy derives a strategy from a failure message when the model
// response does not name one.
func ClassifyStrategy(message string) Strategy {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "nil pointer") || strings.Contains(lower, "null pointer") ||
		strings.Contains(lower, "nonetype") || strings.Contains(lower, "undefined is not"):
		return StrategyNilDereference
	case strings.Contains(lower, "assert") || strings.Contains(lower, "expected") ||
		strings.Contains(lower, "want "):
		return StrategyAssertion
	case strings.Contains(lower, "type") && (strings.Contains(lower, "mismatch") ||
		strings.Contains(lower, "cannot use") || strings.Contains(lower, "incompatible")):
		return StrategyTypeMismatch
	case strings.Contains(lower, "undefined:") || strings.Contains(lower, "not defined") ||
		strings.Contains(lower, "is not a function") || strings.Contains(lower, "no method named"):
		return StrategyMissingFunction
	case strings.Contains(lower, "panic") || strings.Contains(lower, "exception"):
		return StrategyLogicError
	default:
		return StrategyGeneric
	}
}

// Fix is one proposed edit: replace Original with Replacement inside
// TargetFile. The snippet must match the file verbatim or the fix is
// rejected at apply time.
type Fix struct {
	TargetFile  string
	Original    string
	Replacement string
	Rationale   string
	Strategy    Strategy
	Confidence  float64
}
