package fixer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoqa/pkg/code"
	"autoqa/pkg/llm"
	"autoqa/pkg/runner"
)

const fixResponse = "Here is the fix:\n\n```fix\n" +
	"file: calc.go\n" +
	"strategy: logic-error\n" +
	"rationale: Add subtracted instead of adding\n" +
	"--- original\n" +
	"func Add(a, b int) int { return a - b }\n" +
	"--- replacement\n" +
	"func Add(a, b int) int { return a + b }\n" +
	"```\n"

func testSnapshot() *code.Snapshot {
	return code.NewSnapshot("go", "gotest",
		map[string]string{"calc.go": "package calc\n\nfunc Add(a, b int) int { return a - b }\n"},
		map[string]string{"calc_test.go": "package calc\n"},
	)
}

func failingResults() *runner.Results {
	return &runner.Results{
		Framework: runner.FrameworkGoTest,
		ExitCode:  1,
		Total:     1,
		Failed:    1,
		Failures: []runner.Failure{{
			Test:    "TestAdd",
			File:    "calc_test.go",
			Line:    10,
			Message: "Add(2, 3) = -1, want 5",
		}},
	}
}

func TestParseFixes(t *testing.T) {
	fixes := parseFixes(fixResponse)

	require.Len(t, fixes, 1)
	fix := fixes[0]
	assert.Equal(t, "calc.go", fix.TargetFile)
	assert.Equal(t, StrategyLogicError, fix.Strategy)
	assert.Equal(t, "func Add(a, b int) int { return a - b }", fix.Original)
	assert.Equal(t, "func Add(a, b int) int { return a + b }", fix.Replacement)
	assert.InDelta(t, 0.4, fix.Confidence, 0.001)
}

func TestParseFixesMultipleBlocks(t *testing.T) {
	response := fixResponse + "\nAnd another:\n\n```fix\n" +
		"file: util.go\n" +
		"strategy: assertion\n" +
		"rationale: off by one\n" +
		"--- original\n" +
		"x := 1\n" +
		"--- replacement\n" +
		"x := 2\n" +
		"```\n"

	fixes := parseFixes(response)
	require.Len(t, fixes, 2)
	assert.Equal(t, "util.go", fixes[1].TargetFile)
	assert.InDelta(t, 0.7, fixes[1].Confidence, 0.001)
}

func TestParseFixesProseOnly(t *testing.T) {
	fixes := parseFixes("I think the problem might be in the Add function, but I am not sure.")
	assert.Empty(t, fixes)
}

func TestParseFixesMalformedBlockSkipped(t *testing.T) {
	response := "```fix\nfile: calc.go\nno sections here\n```\n" + fixResponse
	fixes := parseFixes(response)
	require.Len(t, fixes, 1)
	assert.Equal(t, "calc.go", fixes[0].TargetFile)
}

func TestParseFixesUnknownStrategyClassified(t *testing.T) {
	response := "```fix\n" +
		"file: calc.go\n" +
		"strategy: quantum\n" +
		"rationale: nil pointer dereference in Add\n" +
		"--- original\n" +
		"a\n" +
		"--- replacement\n" +
		"b\n" +
		"```\n"

	fixes := parseFixes(response)
	require.Len(t, fixes, 1)
	assert.Equal(t, StrategyNilDereference, fixes[0].Strategy)
	assert.InDelta(t, 0.8, fixes[0].Confidence, 0.001)
}

func TestClassifyStrategy(t *testing.T) {
	cases := []struct {
		message string
		want    Strategy
	}{
		{"runtime error: invalid memory address or nil pointer dereference", StrategyNilDereference},
		{"assert 8 == 2", StrategyAssertion},
		{"Subtract(5, 3) = 8, want 2", StrategyAssertion},
		{"cannot use x (type string) as type int", StrategyTypeMismatch},
		{"undefined: Multiply", StrategyMissingFunction},
		{"panic: runtime error", StrategyLogicError},
		{"something odd happened", StrategyGeneric},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyStrategy(tc.message), "message: %s", tc.message)
	}
}

func mockChain(responses ...string) *llm.Orchestrator {
	resps := make([]llm.Response, 0, len(responses))
	for _, content := range responses {
		resps = append(resps, llm.Response{Content: content})
	}
	mock := llm.NewMockProvider("mock", resps, nil)
	return llm.NewOrchestrator([]llm.Provider{mock})
}

func TestProposeFixes(t *testing.T) {
	fixer, err := New(mockChain(fixResponse))
	require.NoError(t, err)

	fixes, err := fixer.ProposeFixes(context.Background(), testSnapshot(), failingResults())
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, "calc.go", fixes[0].TargetFile)
}

func TestProposeFixesDropsTestFileEdits(t *testing.T) {
	response := "```fix\n" +
		"file: calc_test.go\n" +
		"strategy: assertion\n" +
		"rationale: relax the assertion\n" +
		"--- original\n" +
		"want 5\n" +
		"--- replacement\n" +
		"want -1\n" +
		"```\n"
	fixer, err := New(mockChain(response))
	require.NoError(t, err)

	fixes, err := fixer.ProposeFixes(context.Background(), testSnapshot(), failingResults())
	require.NoError(t, err)
	assert.Empty(t, fixes)
}

func TestProposeFixesRetriesUnparseableResponseWithHint(t *testing.T) {
	mock := llm.NewMockProvider("mock", []llm.Response{
		{Content: "I could not find anything actionable in this code."},
		{Content: fixResponse},
	}, nil)
	fixer, err := New(llm.NewOrchestrator([]llm.Provider{mock}))
	require.NoError(t, err)

	fixes, err := fixer.ProposeFixes(context.Background(), testSnapshot(), failingResults())
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, "calc.go", fixes[0].TargetFile)
	assert.Equal(t, 2, mock.Calls())

	// The retry prompt carries the strategy classified from the failure
	// message ("want 5" reads as an assertion defect).
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].Prompt, "fix blocks only")
	assert.Contains(t, reqs[1].Prompt, `"assertion" defect`)
	assert.Contains(t, reqs[1].Prompt, "fix blocks only")
}

func TestProposeFixesRetryAlsoUnparseable(t *testing.T) {
	mock := llm.NewMockProvider("mock", []llm.Response{
		{Content: "Perhaps the Add function is wrong."},
		{Content: "I still cannot say."},
	}, nil)
	fixer, err := New(llm.NewOrchestrator([]llm.Provider{mock}))
	require.NoError(t, err)

	fixes, err := fixer.ProposeFixes(context.Background(), testSnapshot(), failingResults())
	require.NoError(t, err)
	assert.Empty(t, fixes)
	assert.Equal(t, 2, mock.Calls(), "exactly one hinted retry, never more")
}

func TestProposeFixesSkipsWhenAllPassed(t *testing.T) {
	mock := llm.NewMockProvider("mock", nil, nil)
	fixer, err := New(llm.NewOrchestrator([]llm.Provider{mock}))
	require.NoError(t, err)

	fixes, err := fixer.ProposeFixes(context.Background(), testSnapshot(),
		&runner.Results{ExitCode: 0})
	require.NoError(t, err)
	assert.Empty(t, fixes)
	assert.Equal(t, 0, mock.Calls())
}

func TestPromptIncludesFailuresAndSources(t *testing.T) {
	fixer, err := New(mockChain())
	require.NoError(t, err)

	prompt := fixer.builder.build(testSnapshot(), failingResults())
	assert.Contains(t, prompt, "TestAdd")
	assert.Contains(t, prompt, "want 5")
	assert.Contains(t, prompt, "### calc.go")
	assert.Contains(t, prompt, "return a - b")
}

func TestPromptBatchesFirstFourFailures(t *testing.T) {
	results := failingResults()
	results.Failures = nil
	for _, name := range []string{"TestA", "TestB", "TestC", "TestD", "TestE", "TestF"} {
		results.Failures = append(results.Failures, runner.Failure{Test: name, Message: "failed"})
	}
	results.Failed = len(results.Failures)

	fixer, err := New(mockChain())
	require.NoError(t, err)

	prompt := fixer.builder.build(testSnapshot(), results)
	assert.Contains(t, prompt, "TestD")
	assert.NotContains(t, prompt, "TestE")
	assert.Contains(t, prompt, "4 of 6 shown")
}

func TestPromptBudgetOmitsOverflowFiles(t *testing.T) {
	files := map[string]string{
		"calc.go": "package calc\n",
		"big.go":  "package calc\n" + strings.Repeat("// padding line\n", 4000),
	}
	snap := code.NewSnapshot("go", "gotest", files, nil)

	fixer, err := New(mockChain(), WithPromptBudget(2000))
	require.NoError(t, err)

	prompt := fixer.builder.build(snap, failingResults())
	assert.Contains(t, prompt, "prompt budget reached")
}
