// Package patch applies proposed fixes to a code snapshot. Fixes are
// verbatim find-and-replace edits; each one either matches exactly and is
// applied, or is rejected and leaves its target file byte-identical.
package patch

import (
	"fmt"
	"strings"

	"autoqa/pkg/code"
	"autoqa/pkg/fixer"
	"autoqa/pkg/logx"
)

// Rejection records one fix that could not be applied and why.
type Rejection struct {
	Fix    fixer.Fix
	Reason string
}

// Result is the outcome of applying one batch of fixes.
type Result struct {
	// Snapshot is the successor version carrying the applied edits, or nil
	// when no fix in the batch could be applied.
	Snapshot *code.Snapshot
	Applied  []fixer.Fix
	Rejected []Rejection
}

// AppliedCount returns how many fixes in the batch landed.
func (r *Result) AppliedCount() int { return len(r.Applied) }

// Apply stages every fix against copies of the target files and produces a
// single successor snapshot for the batch. Fixes are applied in order, each
// against the staged content left by its predecessors, so later fixes see
// earlier edits. A rejected fix changes nothing.
func Apply(snap *code.Snapshot, fixes []fixer.Fix) (*Result, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	logger := logx.NewLogger("patch")
	result := &Result{}
	staged := make(map[string]string)
	// Only source files are patchable. Test files define the contract the
	// fixes are trying to satisfy and stay frozen.
	sources := snap.Files()

	for _, fix := range fixes {
		content, ok := staged[fix.TargetFile]
		if !ok {
			content, ok = sources[fix.TargetFile]
			if !ok {
				result.Rejected = append(result.Rejected, Rejection{
					Fix:    fix,
					Reason: fmt.Sprintf("%q is not a patchable source file", fix.TargetFile),
				})
				continue
			}
		}

		switch strings.Count(content, fix.Original) {
		case 0:
			result.Rejected = append(result.Rejected, Rejection{
				Fix:    fix,
				Reason: "original snippet not found verbatim",
			})
			continue
		case 1:
			// Exactly one match, unambiguous.
		default:
			result.Rejected = append(result.Rejected, Rejection{
				Fix:    fix,
				Reason: "original snippet is ambiguous (multiple occurrences)",
			})
			continue
		}

		if fix.Original == fix.Replacement {
			result.Rejected = append(result.Rejected, Rejection{
				Fix:    fix,
				Reason: "replacement is identical to original",
			})
			continue
		}

		staged[fix.TargetFile] = strings.Replace(content, fix.Original, fix.Replacement, 1)
		result.Applied = append(result.Applied, fix)
	}

	for _, rej := range result.Rejected {
		logger.Warn("rejected fix for %s: %s", rej.Fix.TargetFile, rej.Reason)
	}

	if len(result.Applied) == 0 {
		return result, nil
	}

	next, err := snap.WithEdits(staged)
	if err != nil {
		return nil, fmt.Errorf("failed to create successor version: %w", err)
	}
	result.Snapshot = next
	logger.Info("applied %d/%d fixes, new version %s", len(result.Applied), len(fixes), next.VersionID())
	return result, nil
}
