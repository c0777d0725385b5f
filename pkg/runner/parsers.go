package runner

import (
	"regexp"
	"strconv"
	"strings"
)

// genericTailBytes bounds how much raw output a fallback failure carries.
const genericTailBytes = 2000

// Per-framework output patterns. These parse the human-readable reporters,
// not machine formats, because the correction prompts need the same text a
// developer would read.
//
//nolint:gochecknoglobals // Compiled once
var (
	goRunLine     = regexp.MustCompile(`(?m)^=== RUN\s+(\S+)`)
	goFailLine    = regexp.MustCompile(`(?m)^\s*--- FAIL: (\S+)`)
	goSkipLine    = regexp.MustCompile(`(?m)^\s*--- SKIP: (\S+)`)
	goFileLine    = regexp.MustCompile(`(?m)^\s+([\w./-]+\.go):(\d+):\s*(.+)$`)
	goCoverage    = regexp.MustCompile(`coverage:\s+([\d.]+)%\s+of statements`)
	cargoSummary  = regexp.MustCompile(`test result:.*?(\d+) passed; (\d+) failed(?:; (\d+) ignored)?`)
	cargoFailName = regexp.MustCompile(`(?m)^---- (\S+) stdout ----$`)
	cargoPanicAt  = regexp.MustCompile(`panicked at ([\w./-]+\.rs):(\d+)`)
	pytestSummary = regexp.MustCompile(`=+ (?:(\d+) failed)?(?:, )?(?:(\d+) passed)?(?:, )?(?:(\d+) skipped)?.* in [\d.]+s`)
	pytestFailed  = regexp.MustCompile(`(?m)^FAILED (\S+?)(?:::(\S+))?(?: - (.*))?$`)
	pytestFileRef = regexp.MustCompile(`([\w./-]+\.py):(\d+)`)
	jestSummary   = regexp.MustCompile(`Tests:\s+(?:(\d+) failed, )?(?:(\d+) skipped, )?(\d+) passed, (\d+) total`)
	jestFailMarker = regexp.MustCompile(`(?m)^\s*● (.+)$`)
	mochaPassing  = regexp.MustCompile(`(\d+) passing`)
	mochaFailing  = regexp.MustCompile(`(\d+) failing`)
	mochaPending  = regexp.MustCompile(`(\d+) pending`)
	mochaFailItem = regexp.MustCompile(`(?m)^\s+(\d+)\) (.+)$`)
	vitestTests   = regexp.MustCompile(`Tests\s+(?:(\d+) failed \| )?(\d+) passed(?: \| (\d+) skipped)?\s+\((\d+)\)`)
	vitestFail    = regexp.MustCompile(`(?m)^\s*(?:×|✕|FAIL)\s+(.+?)(?:\s+\d+ms)?$`)
)

// parseOutput dispatches to the framework's parser. When nothing can be
// extracted from a failing run, the raw output tail becomes a single generic
// failure so the correction loop never starves for input.
func parseOutput(framework Framework, stdout, stderr string, exitCode int) Results {
	results := Results{
		Framework: framework,
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  exitCode,
	}

	switch framework {
	case FrameworkGoTest:
		parseGoTest(&results)
	case FrameworkCargo:
		parseCargo(&results)
	case FrameworkPytest:
		parsePytest(&results)
	case FrameworkJest:
		parseJest(&results)
	case FrameworkMocha:
		parseMocha(&results)
	case FrameworkVitest:
		parseVitest(&results)
	}

	if exitCode != 0 && len(results.Failures) == 0 {
		results.Failures = []Failure{genericFailure(stdout, stderr)}
		if results.Failed == 0 {
			results.Failed = 1
		}
		if results.Total == 0 {
			results.Total = 1
		}
	}
	return results
}

func parseGoTest(r *Results) {
	out := r.Stdout
	runs := goRunLine.FindAllStringSubmatch(out, -1)
	fails := goFailLine.FindAllStringSubmatch(out, -1)
	skips := goSkipLine.FindAllStringSubmatch(out, -1)

	r.Total = len(runs)
	r.Failed = len(fails)
	r.Skipped = len(skips)
	r.Passed = r.Total - r.Failed - r.Skipped
	if r.Passed < 0 {
		r.Passed = 0
	}

	for _, m := range fails {
		failure := Failure{Test: m[1]}
		// The file:line detail for a failing test sits in the indented block
		// between its RUN and FAIL lines.
		block := blockBetween(out, "=== RUN   "+m[1], "--- FAIL: "+m[1])
		if fm := goFileLine.FindStringSubmatch(block); fm != nil {
			failure.File = fm[1]
			failure.Line, _ = strconv.Atoi(fm[2])
			failure.Message = strings.TrimSpace(fm[3])
		}
		if failure.Message == "" {
			failure.Message = "test failed"
		}
		failure.Stack = strings.TrimSpace(block)
		r.Failures = append(r.Failures, failure)
	}

	if cm := goCoverage.FindStringSubmatch(out); cm != nil {
		if pct, err := strconv.ParseFloat(cm[1], 64); err == nil {
			r.Coverage = &Coverage{Percent: pct}
		}
	}
}

func parseCargo(r *Results) {
	out := r.Stdout
	// Cargo prints one summary per test binary; sum them.
	for _, m := range cargoSummary.FindAllStringSubmatch(out, -1) {
		passed, _ := strconv.Atoi(m[1])
		failed, _ := strconv.Atoi(m[2])
		r.Passed += passed
		r.Failed += failed
		if m[3] != "" {
			ignored, _ := strconv.Atoi(m[3])
			r.Skipped += ignored
		}
	}
	r.Total = r.Passed + r.Failed + r.Skipped

	for _, m := range cargoFailName.FindAllStringSubmatch(out, -1) {
		name := m[1]
		block := blockBetween(out, "---- "+name+" stdout ----", "\n\n")
		failure := Failure{
			Test:    name,
			Message: firstLine(strings.TrimSpace(block)),
			Stack:   strings.TrimSpace(block),
		}
		if pm := cargoPanicAt.FindStringSubmatch(block); pm != nil {
			failure.File = pm[1]
			failure.Line, _ = strconv.Atoi(pm[2])
		}
		if failure.Message == "" {
			failure.Message = "test failed"
		}
		r.Failures = append(r.Failures, failure)
	}
}

func parsePytest(r *Results) {
	out := r.Stdout
	if m := pytestSummary.FindStringSubmatch(out); m != nil {
		r.Failed, _ = strconv.Atoi(m[1])
		r.Passed, _ = strconv.Atoi(m[2])
		r.Skipped, _ = strconv.Atoi(m[3])
	}
	r.Total = r.Passed + r.Failed + r.Skipped

	for _, m := range pytestFailed.FindAllStringSubmatch(out, -1) {
		failure := Failure{
			Test:    m[2],
			Message: strings.TrimSpace(m[3]),
		}
		if failure.Test == "" {
			failure.Test = m[1]
		}
		if fm := pytestFileRef.FindStringSubmatch(m[1]); fm != nil {
			failure.File = fm[1]
			failure.Line, _ = strconv.Atoi(fm[2])
		} else {
			failure.File = strings.SplitN(m[1], "::", 2)[0]
		}
		if failure.Message == "" {
			failure.Message = "test failed"
		}
		r.Failures = append(r.Failures, failure)
	}
}

func parseJest(r *Results) {
	// Jest reports on stderr.
	out := r.Stderr
	if out == "" {
		out = r.Stdout
	}
	if m := jestSummary.FindStringSubmatch(out); m != nil {
		r.Failed, _ = strconv.Atoi(m[1])
		r.Skipped, _ = strconv.Atoi(m[2])
		r.Passed, _ = strconv.Atoi(m[3])
		r.Total, _ = strconv.Atoi(m[4])
	}

	// Each failure starts at a "●" marker and runs to the next marker or
	// the end of the report.
	locs := jestFailMarker.FindAllStringSubmatchIndex(out, -1)
	for i, loc := range locs {
		name := strings.TrimSpace(out[loc[2]:loc[3]])
		// Jest repeats each failure under a "Summary of all failing tests"
		// section; the first occurrence carries the full block.
		if containsFailure(r.Failures, name) {
			continue
		}
		end := len(out)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		block := strings.TrimSpace(out[loc[1]:end])
		r.Failures = append(r.Failures, Failure{
			Test:    name,
			Message: firstLine(block),
			Stack:   block,
		})
	}
}

func parseMocha(r *Results) {
	out := r.Stdout
	if m := mochaPassing.FindStringSubmatch(out); m != nil {
		r.Passed, _ = strconv.Atoi(m[1])
	}
	if m := mochaFailing.FindStringSubmatch(out); m != nil {
		r.Failed, _ = strconv.Atoi(m[1])
	}
	if m := mochaPending.FindStringSubmatch(out); m != nil {
		r.Skipped, _ = strconv.Atoi(m[1])
	}
	r.Total = r.Passed + r.Failed + r.Skipped

	for _, m := range mochaFailItem.FindAllStringSubmatch(out, -1) {
		name := strings.TrimSpace(m[2])
		if strings.HasSuffix(name, ":") {
			name = strings.TrimSuffix(name, ":")
		}
		if containsFailure(r.Failures, name) {
			continue
		}
		r.Failures = append(r.Failures, Failure{
			Test:    name,
			Message: "test failed",
		})
	}
}

func parseVitest(r *Results) {
	out := r.Stdout
	if out == "" {
		out = r.Stderr
	}
	if m := vitestTests.FindStringSubmatch(out); m != nil {
		r.Failed, _ = strconv.Atoi(m[1])
		r.Passed, _ = strconv.Atoi(m[2])
		r.Skipped, _ = strconv.Atoi(m[3])
		r.Total, _ = strconv.Atoi(m[4])
	}

	for _, m := range vitestFail.FindAllStringSubmatch(out, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || containsFailure(r.Failures, name) {
			continue
		}
		r.Failures = append(r.Failures, Failure{
			Test:    name,
			Message: "test failed",
		})
	}
}

// genericFailure is the degradation path for output no parser understood.
func genericFailure(stdout, stderr string) Failure {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = strings.TrimSpace(stdout)
	}
	return Failure{
		Test:    "<unparsed output>",
		Message: "test command failed; output could not be parsed",
		Stack:   tail(detail, genericTailBytes),
	}
}

// blockBetween returns the text between the line containing start and the
// next occurrence of end, or "" when either marker is missing.
func blockBetween(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return rest
	}
	return rest[:j]
}

func containsFailure(failures []Failure, name string) bool {
	for _, f := range failures {
		if f.Test == name {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// tail returns up to n trailing bytes of s, cut at a line boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[len(s)-n:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i < len(cut)-1 {
		cut = cut[i+1:]
	}
	return cut
}
