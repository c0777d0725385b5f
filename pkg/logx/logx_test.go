package logx

import (
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("cycle")
	if logger.GetComponent() != "cycle" {
		t.Errorf("Expected component 'cycle', got %s", logger.GetComponent())
	}
}

func TestWithComponent(t *testing.T) {
	logger := NewLogger("cycle")
	derived := logger.WithComponent("runner")

	if derived.GetComponent() != "runner" {
		t.Errorf("Expected component 'runner', got %s", derived.GetComponent())
	}
	if logger.GetComponent() != "cycle" {
		t.Error("Original logger component should be unchanged")
	}
}

func TestSetDebugAllDomains(t *testing.T) {
	defer SetDebug(false, nil)

	SetDebug(true, nil)
	if !IsDebugEnabled() {
		t.Error("Debug should be enabled")
	}
	if !IsDebugEnabledForDomain("llm") {
		t.Error("All domains should be enabled when no filter is set")
	}
}

func TestSetDebugDomainFilter(t *testing.T) {
	defer SetDebug(false, nil)

	SetDebug(true, []string{"cycle", "runner"})

	if !IsDebugEnabledForDomain("cycle") {
		t.Error("Expected cycle domain enabled")
	}
	if IsDebugEnabledForDomain("llm") {
		t.Error("Expected llm domain disabled")
	}
}

func TestDebugDisabled(t *testing.T) {
	defer SetDebug(false, nil)

	SetDebug(false, nil)
	if IsDebugEnabledForDomain("cycle") {
		t.Error("No domain should be enabled when debug is off")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) should return nil, got %v", err)
	}
}

func TestErrorfReturnsError(t *testing.T) {
	err := Errorf("boom: %d", 42)
	if err == nil {
		t.Fatal("Errorf should return an error")
	}
	if err.Error() != "boom: 42" {
		t.Errorf("Unexpected error text: %s", err.Error())
	}
}
