// Package runner executes a project's declared test suite through the
// framework's native command and parses the raw output into structured
// failure records.
package runner

import "time"

// Framework identifies a supported test framework.
type Framework string

const (
	FrameworkGoTest Framework = "gotest"
	FrameworkCargo  Framework = "cargo"
	FrameworkJest   Framework = "jest"
	FrameworkPytest Framework = "pytest"
	FrameworkMocha  Framework = "mocha"
	FrameworkVitest Framework = "vitest"
)

// Failure is one structured test failure derived from raw runner output.
type Failure struct {
	Test    string // Test name as reported by the framework
	Message string // Error message or assertion text
	File    string // Source file when the output names one
	Line    int    // 0 when unknown
	Stack   string // Stack or failure-block excerpt when present
}

// Coverage carries coverage figures when the framework reports them.
type Coverage struct {
	Percent float64
}

// Results is the outcome of one test execution. Produced once per run and
// read-only afterward.
type Results struct {
	Framework Framework
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	TimedOut  bool

	Total    int
	Passed   int
	Failed   int
	Skipped  int
	Failures []Failure
	Coverage *Coverage
}

// AllPassed reports whether the run ended with zero failures and a clean
// exit. Convergence decisions use only this, on the exact version tested.
func (r *Results) AllPassed() bool {
	return r.ExitCode == 0 && r.Failed == 0 && !r.TimedOut
}

// FailureCount returns the number of observed failures, falling back to the
// parsed failed-test counter when individual records are unavailable.
func (r *Results) FailureCount() int {
	if len(r.Failures) > 0 {
		return len(r.Failures)
	}
	return r.Failed
}
