package fixer

import (
	"fmt"
	"strings"

	"autoqa/pkg/code"
	"autoqa/pkg/runner"
	"autoqa/pkg/utils"
)

const (
	// maxBatchFailures caps how many failures one prompt addresses. Fixing a
	// few defects well beats drowning the model in the whole suite.
	maxBatchFailures = 4

	// defaultPromptBudget bounds prompt size in tokens. Source files are
	// dropped from the tail once the budget is reached.
	defaultPromptBudget = 12000
)

const systemPrompt = `You are a senior software engineer fixing failing tests in a generated project.
You receive source files and structured test failures. Propose minimal, targeted edits.

Respond ONLY with one or more fix blocks in exactly this format:

` + "```fix" + `
file: <relative path>
strategy: <assertion|nil-dereference|type-mismatch|missing-function|logic-error|generic>
rationale: <one line>
--- original
<exact snippet copied verbatim from the file>
--- replacement
<the corrected snippet>
` + "```" + `

The original snippet must match the file content character for character.
Never edit test files. Never rewrite whole files.`

// promptBuilder assembles correction prompts under a token budget.
type promptBuilder struct {
	counter *utils.TokenCounter
	budget  int
}

func newPromptBuilder(counter *utils.TokenCounter, budget int) *promptBuilder {
	if budget <= 0 {
		budget = defaultPromptBudget
	}
	return &promptBuilder{counter: counter, budget: budget}
}

// build renders the user prompt for one correction round: the failure batch
// first, then as many source files as fit the remaining budget.
func (b *promptBuilder) build(snap *code.Snapshot, results *runner.Results) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Project language: %s\nTest framework: %s\n\n", snap.Language(), snap.Framework()))

	failures := results.Failures
	if len(failures) > maxBatchFailures {
		failures = failures[:maxBatchFailures]
	}
	sb.WriteString(fmt.Sprintf("## Failing tests (%d of %d shown)\n\n", len(failures), len(results.Failures)))
	for i, f := range failures {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, f.Test))
		if f.File != "" {
			sb.WriteString(fmt.Sprintf("   at %s:%d\n", f.File, f.Line))
		}
		sb.WriteString(fmt.Sprintf("   %s\n", f.Message))
		if f.Stack != "" {
			sb.WriteString("   ```\n   " + strings.ReplaceAll(truncate(f.Stack, 1200), "\n", "\n   ") + "\n   ```\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Source files\n\n")
	used := b.counter.CountTokens(sb.String()) + b.counter.CountTokens(systemPrompt)

	for _, path := range orderPaths(snap, failures) {
		content, _ := snap.File(path)
		section := fmt.Sprintf("### %s\n```\n%s\n```\n\n", path, content)
		cost := b.counter.CountTokens(section)
		if used+cost > b.budget {
			sb.WriteString(fmt.Sprintf("### %s\n(omitted: prompt budget reached)\n\n", path))
			continue
		}
		sb.WriteString(section)
		used += cost
	}

	sb.WriteString("Propose fixes for the failures above.")
	return sb.String()
}

// orderPaths puts files named by the failures first so they survive budget
// trimming, then the rest in deterministic order.
func orderPaths(snap *code.Snapshot, failures []runner.Failure) []string {
	seen := make(map[string]bool)
	var ordered []string
	for _, f := range failures {
		if f.File != "" && snap.HasFile(f.File) && !seen[f.File] {
			seen[f.File] = true
			ordered = append(ordered, f.File)
		}
	}
	for _, path := range snap.SourcePaths() {
		if !seen[path] {
			seen[path] = true
			ordered = append(ordered, path)
		}
	}
	return ordered
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n[truncated]"
}
