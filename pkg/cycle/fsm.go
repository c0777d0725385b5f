// Package cycle drives the autocorrection loop: run tests, diagnose
// failures, generate and apply fixes, re-test, bounded by an iteration
// budget. The loop is modeled as an explicit state machine so every legal
// move is declared in one place.
package cycle

import "fmt"

// State is one phase of the correction state machine.
type State string

// State constants - single source of truth for state names.
const (
	StateInit          State = "INIT"
	StateRunTests      State = "RUN_TESTS"
	StateGenerateFixes State = "GENERATE_FIXES"
	StateApplyFixes    State = "APPLY_FIXES"
	StateSuccess       State = "SUCCESS"
	StateFailed        State = "FAILED"
)

// Transitions defines the canonical state transition map for the cycle.
// This is the single source of truth; the driver and its tests must match
// this map exactly.
//
//nolint:gochecknoglobals // Canonical transition table
var Transitions = map[State][]State{
	// INIT materializes the initial version and moves to the baseline run.
	StateInit: {StateRunTests, StateFailed},

	// RUN_TESTS can converge (→SUCCESS), hand failures to diagnosis
	// (→GENERATE_FIXES), or terminate on budget/stagnation/cancellation.
	StateRunTests: {StateSuccess, StateGenerateFixes, StateFailed},

	// GENERATE_FIXES produces a fix batch (→APPLY_FIXES) or terminates when
	// every generation strategy failed.
	StateGenerateFixes: {StateApplyFixes, StateFailed},

	// APPLY_FIXES re-tests when at least one fix landed (→RUN_TESTS),
	// returns to diagnosis when nothing applied (the version is unchanged,
	// re-running tests would reproduce known results), or terminates.
	StateApplyFixes: {StateRunTests, StateGenerateFixes, StateFailed},

	// Terminal states.
	StateSuccess: {},
	StateFailed:  {},
}

// IsValidTransition reports whether moving from one state to another is
// allowed by the canonical map.
func IsValidTransition(from, to State) bool {
	allowed, exists := Transitions[from]
	if !exists {
		return false
	}
	for _, state := range allowed {
		if state == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(state State) bool {
	allowed, exists := Transitions[state]
	return exists && len(allowed) == 0
}

// ValidateState checks that a state appears in the canonical map.
func ValidateState(state State) error {
	if _, exists := Transitions[state]; exists {
		return nil
	}
	for _, allowed := range Transitions {
		for _, s := range allowed {
			if s == state {
				return nil
			}
		}
	}
	return fmt.Errorf("invalid cycle state: %s", state)
}
