package cycle

import (
	"time"

	"autoqa/pkg/code"
	"autoqa/pkg/fixer"
	"autoqa/pkg/patch"
	"autoqa/pkg/runner"
)

// Termination names the concrete reason a cycle ended. A bare success flag
// is never returned alone.
type Termination string

const (
	// TerminationSuccess means the exact version last tested passed its
	// full suite.
	TerminationSuccess Termination = "success"

	// TerminationBudgetExhausted means the iteration budget ran out with
	// failures remaining.
	TerminationBudgetExhausted Termination = "budget_exhausted"

	// TerminationNoProgress means no fix strategy could produce anything
	// within one iteration (provider chain exhausted, or the environment
	// cannot run tests at all).
	TerminationNoProgress Termination = "no_progress"

	// TerminationStagnation means the optional minimum-improvement policy
	// cut the run short.
	TerminationStagnation Termination = "stagnation"

	// TerminationCanceled means caller cancellation was observed at a
	// state-transition boundary.
	TerminationCanceled Termination = "canceled"
)

// Iteration is one entry in the ordered cycle history: the failures seen,
// the fixes attempted, and where they landed.
type Iteration struct {
	Num                int
	VersionID          string // version produced by this iteration's fixes; parent's ID if none applied
	Total              int    // tests in the run this iteration ended with
	FailuresBefore     int
	FailuresAfter      int
	ImprovementPercent float64
	Applied            []fixer.Fix
	Rejected           []patch.Rejection
	TestDuration       time.Duration
}

// Improved reports whether this iteration reduced the failure count.
func (it *Iteration) Improved() bool {
	return it.FailuresAfter < it.FailuresBefore
}

// Result is the terminal artifact of one cycle.
type Result struct {
	CycleID      string
	Success      bool
	Termination  Termination
	Iterations   int
	History      []Iteration
	Final        *code.Snapshot
	FinalResults *runner.Results
	StartedAt    time.Time
	Duration     time.Duration
}

// improvementPercent computes how much the failure count dropped, as a
// percentage of the starting count. Zero failures before means nothing was
// broken, which is full improvement.
func improvementPercent(before, after int) float64 {
	if before == 0 {
		return 100.0
	}
	fixed := before - after
	if fixed < 0 {
		fixed = 0
	}
	return float64(fixed) / float64(before) * 100.0
}
