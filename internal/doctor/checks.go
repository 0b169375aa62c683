// Package doctor diagnoses a teabase setup: config, required binaries, the
// SSH key, the signing configuration and the operation lock. Some failures
// can be repaired in place with Fix.
package doctor

import (
	"context"
	"fmt"

	"github.com/teaxyz/teabase/internal/util"
)

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText renders the status as its string form in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Categories in display order.
const (
	CategoryConfig  = "CONFIG"
	CategoryTools   = "TOOLS"
	CategorySSH     = "SSH"
	CategorySigning = "SIGNING"
	CategoryLock    = "LOCK"
)

// CategoryOrder is the order groups are rendered in.
var CategoryOrder = []string{CategoryConfig, CategoryTools, CategorySSH, CategorySigning, CategoryLock}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Fixable    bool        `json:"fixable,omitempty"` // Whether --fix can address this
}

// Check defines the interface for diagnostic checks.
type Check interface {
	// Name returns the check's identifier.
	Name() string

	// Category returns the check's category (e.g., "CONFIG", "SSH").
	Category() string

	// Run executes the check and returns the result.
	Run(ctx context.Context) CheckResult

	// Fix attempts to repair the issue Run reported. Checks that cannot
	// repair anything return nil.
	Fix(ctx context.Context) error
}

func result(c Check, status CheckStatus, msg, suggestion string) CheckResult {
	return CheckResult{
		Name:       c.Name(),
		Category:   c.Category(),
		Status:     status,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// RunAll executes checks in order and returns their results.
func RunAll(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	for i, check := range checks {
		results[i] = check.Run(ctx)
	}
	return results
}

// FixAll runs Fix on every check whose result is fixable and not passing,
// then re-runs it. It returns the updated results and the first fix error.
func FixAll(ctx context.Context, checks []Check, results []CheckResult) ([]CheckResult, error) {
	var firstErr error
	out := make([]CheckResult, len(results))
	copy(out, results)
	for i, check := range checks {
		r := results[i]
		if !r.Fixable || r.Status == StatusPass {
			continue
		}
		if err := check.Fix(ctx); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fix %s: %w", check.Name(), err)
			}
			continue
		}
		out[i] = check.Run(ctx)
	}
	return out, firstErr
}

// GroupByCategory organizes results by their category.
func GroupByCategory(results []CheckResult) map[string][]CheckResult {
	grouped := make(map[string][]CheckResult)
	for _, r := range results {
		grouped[r.Category] = append(grouped[r.Category], r)
	}
	return grouped
}

// CountByStatus counts results by status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures returns true if any result has a fail status.
func HasFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// FixableCount returns the number of issues that can be fixed automatically.
func FixableCount(results []CheckResult) int {
	count := 0
	for _, r := range results {
		if r.Fixable && r.Status != StatusPass {
			count++
		}
	}
	return count
}

// Summary returns a summary string of the check results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	total := counts[StatusWarn] + counts[StatusFail]
	if total == 0 {
		return "Everything looks good"
	}
	return fmt.Sprintf("%d %s found", total, util.Pluralize(total, "issue", "issues"))
}
