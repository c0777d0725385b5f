package cycle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"autoqa/pkg/code"
	"autoqa/pkg/fixer"
	"autoqa/pkg/logx"
	"autoqa/pkg/patch"
	"autoqa/pkg/runner"
)

// TestRunner executes a project's test suite in a working directory.
type TestRunner interface {
	Run(ctx context.Context, projectDir string, framework runner.Framework) (runner.Results, error)
}

// FixProposer turns test failures into proposed edits.
type FixProposer interface {
	ProposeFixes(ctx context.Context, snap *code.Snapshot, results *runner.Results) ([]fixer.Fix, error)
}

// Recorder receives cycle-level observations. The nil recorder is a no-op.
// Implemented by pkg/metrics.
type Recorder interface {
	ObserveIteration(improved bool)
	ObserveFix(strategy string, applied bool)
	ObserveCycle(termination string, duration time.Duration)
	SetFailuresRemaining(cycleID string, count int)
}

// StagnationPolicy cuts a run short when consecutive iterations stop
// improving. Off by default; a later fix round can recover a flat stretch.
type StagnationPolicy struct {
	Enabled               bool
	Window                int     // consecutive iterations below threshold
	MinImprovementPercent float64 // improvement below this counts as flat
}

// Policy bounds one cycle.
type Policy struct {
	MaxIterations int
	Stagnation    StagnationPolicy
}

// DefaultPolicy returns the standard iteration budget with stagnation off.
func DefaultPolicy() Policy {
	return Policy{
		MaxIterations: 5,
		Stagnation: StagnationPolicy{
			Window:                2,
			MinImprovementPercent: 1.0,
		},
	}
}

// Cycle is the autocorrection driver. It is immutable configuration after
// construction; any number of cycles over distinct projects may run
// concurrently, each owning an isolated working directory.
type Cycle struct {
	runner   TestRunner
	proposer FixProposer
	recorder Recorder
	policy   Policy
	workdir  string
	logger   *logx.Logger
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(c *Cycle) { c.recorder = recorder }
}

// New creates a cycle driver. workdir is the root under which each code
// version is materialized into its own subdirectory.
func New(testRunner TestRunner, proposer FixProposer, policy Policy, workdir string, opts ...Option) (*Cycle, error) {
	if testRunner == nil || proposer == nil {
		return nil, fmt.Errorf("runner and fix proposer are required")
	}
	if policy.MaxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be at least 1")
	}
	if policy.Stagnation.Enabled && policy.Stagnation.Window < 1 {
		return nil, fmt.Errorf("stagnation window must be at least 1")
	}
	c := &Cycle{
		runner:   testRunner,
		proposer: proposer,
		policy:   policy,
		workdir:  workdir,
		logger:   logx.NewLogger("cycle"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// run is the mutable state of one execution, kept off the Cycle so the
// driver stays safe for concurrent use.
type run struct {
	cycleID string
	state   State
	version *code.Snapshot
	results runner.Results
	history []Iteration
	flat    int // consecutive iterations below the improvement threshold
}

// advance moves the run to the next state, enforcing the canonical map.
func (r *run) advance(to State) error {
	if !IsValidTransition(r.state, to) {
		return fmt.Errorf("illegal transition %s -> %s", r.state, to)
	}
	r.state = to
	return nil
}

// Run executes one full autocorrection cycle over the given code version.
// The returned Result always carries a concrete termination reason; the
// error is non-nil only for cancellation and environment-level failures,
// and the Result is populated either way.
func (c *Cycle) Run(ctx context.Context, snap *code.Snapshot) (*Result, error) {
	start := time.Now()
	r := &run{
		cycleID: uuid.New().String(),
		state:   StateInit,
		version: snap,
	}
	c.logger.Info("cycle %s starting: %s/%s, budget %d iterations",
		r.cycleID, snap.Language(), snap.Framework(), c.policy.MaxIterations)

	// Baseline run establishes the failure set iteration 1 works from.
	if err := r.advance(StateRunTests); err != nil {
		return nil, err
	}
	if err := c.runTests(ctx, r); err != nil {
		return c.finish(r, TerminationNoProgress, start), err
	}

	if r.results.AllPassed() {
		// Nothing to correct. History still gets one entry so its length
		// matches iterations completed.
		_ = r.advance(StateSuccess)
		r.history = append(r.history, Iteration{
			Num:                1,
			VersionID:          r.version.VersionID(),
			Total:              r.results.Total,
			ImprovementPercent: 100.0,
			TestDuration:       r.results.Duration,
		})
		return c.finish(r, TerminationSuccess, start), nil
	}

	for iter := 1; iter <= c.policy.MaxIterations; iter++ {
		result, done, err := c.iterate(ctx, r, iter, start)
		if done {
			return result, err
		}
	}

	_ = r.advance(StateFailed)
	c.logger.Warn("cycle %s: budget of %d iterations exhausted, %d failure(s) remain",
		r.cycleID, c.policy.MaxIterations, r.results.FailureCount())
	return c.finish(r, TerminationBudgetExhausted, start), nil
}

// iterate performs one correction attempt: generate fixes for the current
// failures, apply them, and re-test when the version changed. done reports
// whether the cycle terminated inside this iteration.
func (c *Cycle) iterate(ctx context.Context, r *run, iter int, start time.Time) (*Result, bool, error) {
	failuresBefore := r.results.FailureCount()
	c.logger.Info("cycle %s iteration %d/%d: %d failure(s)",
		r.cycleID, iter, c.policy.MaxIterations, failuresBefore)

	// Cancellation is observed at state-transition boundaries only.
	if err := ctx.Err(); err != nil {
		_ = r.advance(StateFailed)
		return c.finish(r, TerminationCanceled, start), true, err
	}
	if err := r.advance(StateGenerateFixes); err != nil {
		return nil, true, err
	}

	fixes, err := c.proposer.ProposeFixes(ctx, r.version, &r.results)
	if err != nil {
		// Every generation strategy failed within this iteration.
		_ = r.advance(StateFailed)
		c.logger.Error("cycle %s: fix generation failed: %v", r.cycleID, err)
		r.history = append(r.history, c.record(r, iter, failuresBefore, failuresBefore, nil))
		return c.finish(r, TerminationNoProgress, start), true, err
	}

	if err := r.advance(StateApplyFixes); err != nil {
		return nil, true, err
	}
	applied, err := patch.Apply(r.version, fixes)
	if err != nil {
		_ = r.advance(StateFailed)
		r.history = append(r.history, c.record(r, iter, failuresBefore, failuresBefore, nil))
		return c.finish(r, TerminationNoProgress, start), true, err
	}
	for _, fix := range applied.Applied {
		c.observeFix(string(fix.Strategy), true)
	}
	for _, rej := range applied.Rejected {
		c.observeFix(string(rej.Fix.Strategy), false)
	}

	failuresAfter := failuresBefore
	previous := r.version
	previousResults := r.results

	if applied.Snapshot != nil {
		r.version = applied.Snapshot
		if err := r.advance(StateRunTests); err != nil {
			return nil, true, err
		}
		if err := c.runTests(ctx, r); err != nil {
			r.history = append(r.history, c.record(r, iter, failuresBefore, failuresBefore, applied))
			return c.finish(r, TerminationNoProgress, start), true, err
		}
		failuresAfter = r.results.FailureCount()
	} else {
		// Nothing landed; the version is unchanged and re-running tests
		// would reproduce known results. The next iteration moves
		// APPLY_FIXES -> GENERATE_FIXES directly.
		c.logger.Warn("cycle %s iteration %d: no fixes applied", r.cycleID, iter)
	}

	entry := c.record(r, iter, failuresBefore, failuresAfter, applied)
	r.history = append(r.history, entry)
	c.observeIteration(entry.Improved())
	c.setFailuresRemaining(r.cycleID, failuresAfter)

	if applied.Snapshot != nil && r.results.AllPassed() {
		_ = r.advance(StateSuccess)
		return c.finish(r, TerminationSuccess, start), true, nil
	}

	if failuresAfter > failuresBefore {
		// The new version made things worse. Roll back by pointing at the
		// prior immutable version; the failed version stays in the chain
		// for audit.
		c.logger.Warn("cycle %s iteration %d: regression (%d -> %d failures), rolling back to %s",
			r.cycleID, iter, failuresBefore, failuresAfter, previous.VersionID())
		r.version = previous
		r.results = previousResults
	}

	if c.stagnated(r, entry.ImprovementPercent) {
		_ = r.advance(StateFailed)
		c.logger.Warn("cycle %s: stagnation after %d flat iteration(s)", r.cycleID, r.flat)
		return c.finish(r, TerminationStagnation, start), true, nil
	}
	return nil, false, nil
}

// runTests materializes the current version into its own directory and
// executes the suite there. Timed-out runs come back as results with a
// synthetic failure and feed the normal fix path; only environment-level
// failures return an error.
func (c *Cycle) runTests(ctx context.Context, r *run) error {
	dir := filepath.Join(c.workdir, r.cycleID, r.version.VersionID())
	if err := r.version.Materialize(dir); err != nil {
		return fmt.Errorf("failed to materialize version %s: %w", r.version.VersionID(), err)
	}

	results, err := c.runner.Run(ctx, dir, runner.Framework(r.version.Framework()))
	if err != nil {
		return err
	}
	r.results = results
	return nil
}

func (c *Cycle) record(r *run, num, before, after int, applied *patch.Result) Iteration {
	entry := Iteration{
		Num:                num,
		VersionID:          r.version.VersionID(),
		Total:              r.results.Total,
		FailuresBefore:     before,
		FailuresAfter:      after,
		ImprovementPercent: improvementPercent(before, after),
		TestDuration:       r.results.Duration,
	}
	if applied != nil {
		entry.Applied = applied.Applied
		entry.Rejected = applied.Rejected
	}
	return entry
}

// stagnated updates the flat-iteration counter and reports whether the
// optional stagnation policy terminates the run.
func (c *Cycle) stagnated(r *run, improvement float64) bool {
	if !c.policy.Stagnation.Enabled {
		return false
	}
	if improvement < c.policy.Stagnation.MinImprovementPercent {
		r.flat++
	} else {
		r.flat = 0
	}
	return r.flat >= c.policy.Stagnation.Window
}

func (c *Cycle) finish(r *run, termination Termination, start time.Time) *Result {
	duration := time.Since(start)
	if c.recorder != nil {
		c.recorder.ObserveCycle(string(termination), duration)
	}
	success := termination == TerminationSuccess
	c.logger.Info("cycle %s finished: %s after %d iteration(s) in %s",
		r.cycleID, termination, len(r.history), duration.Round(time.Millisecond))

	final := r.results
	return &Result{
		CycleID:      r.cycleID,
		Success:      success,
		Termination:  termination,
		Iterations:   len(r.history),
		History:      r.history,
		Final:        r.version,
		FinalResults: &final,
		StartedAt:    start,
		Duration:     duration,
	}
}

func (c *Cycle) observeIteration(improved bool) {
	if c.recorder != nil {
		c.recorder.ObserveIteration(improved)
	}
}

func (c *Cycle) observeFix(strategy string, applied bool) {
	if c.recorder != nil {
		c.recorder.ObserveFix(strategy, applied)
	}
}

func (c *Cycle) setFailuresRemaining(cycleID string, count int) {
	if c.recorder != nil {
		c.recorder.SetFailuresRemaining(cycleID, count)
	}
}
