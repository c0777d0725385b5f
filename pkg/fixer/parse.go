package fixer

import (
	"regexp"
	"strings"
)

//nolint:gochecknoglobals // Compiled once
var fixBlockRe = regexp.MustCompile("(?ms)^```fix\\s*$(.*?)^```\\s*$")

// parseFixes extracts fix blocks from a model response. Malformed blocks are
// skipped individually; prose with no valid block yields an empty slice, not
// an error, so the cycle can count the iteration and move on.
func parseFixes(response string) []Fix {
	var fixes []Fix
	for _, m := range fixBlockRe.FindAllStringSubmatch(response, -1) {
		if fix, ok := parseBlock(m[1]); ok {
			fixes = append(fixes, fix)
		}
	}
	return fixes
}

func parseBlock(block string) (Fix, bool) {
	headerPart, rest, found := strings.Cut(block, "--- original")
	if !found {
		return Fix{}, false
	}
	original, replacement, found := strings.Cut(rest, "--- replacement")
	if !found {
		return Fix{}, false
	}

	fix := Fix{
		Original:    trimSection(original),
		Replacement: trimSection(replacement),
	}
	if fix.Original == "" {
		return Fix{}, false
	}

	for _, line := range strings.Split(headerPart, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(strings.ToLower(key)) {
		case "file":
			fix.TargetFile = value
		case "strategy":
			fix.Strategy = Strategy(strings.ToLower(value))
		case "rationale":
			fix.Rationale = value
		}
	}
	if fix.TargetFile == "" {
		return Fix{}, false
	}

	if _, known := strategyConfidence[fix.Strategy]; !known {
		fix.Strategy = ClassifyStrategy(fix.Rationale)
	}
	fix.Confidence = fix.Strategy.Confidence()
	return fix, true
}

// trimSection strips one leading and one trailing newline so snippet
// boundaries are the author's, not the block syntax's.
func trimSection(s string) string {
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	return s
}
