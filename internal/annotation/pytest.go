package annotation

import (
	"regexp"
	"strconv"
)

// Static regexes for pytest output parsing.
// Compiled once at package init for performance.
var (
	pytestPassedRegex  = regexp.MustCompile(`(\d+) passed`)
	pytestFailedRegex  = regexp.MustCompile(`(\d+) failed`)
	pytestSkippedRegex = regexp.MustCompile(`(\d+) skipped`)
)

// TestCounts holds test result counts parsed from a test environment's output.
type TestCounts struct {
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Total   int  `json:"total"`
	Parsed  bool `json:"parsed"` // true if counts were successfully extracted
}

// Add adds another TestCounts to this one, aggregating the counts.
// The Parsed flag uses "sticky true" semantics: if any added TestCounts
// has Parsed=true, the aggregate will have Parsed=true. This means
// Parsed indicates "at least one result was successfully parsed",
// not "all results were parsed".
func (tc *TestCounts) Add(other *TestCounts) {
	if other == nil {
		return
	}
	tc.Passed += other.Passed
	tc.Failed += other.Failed
	tc.Skipped += other.Skipped
	tc.Total += other.Total
	if other.Parsed {
		tc.Parsed = true
	}
}

// ParsePytest extracts test counts from pytest output.
// pytest outputs summary lines like:
//
//	======= 47 passed in 0.12s =======
//	======= 45 passed, 2 failed in 0.12s =======
//	======= 30 passed, 0 failed, 3 skipped in 0.12s =======
//	======= 1 passed, 2 failed, 3 skipped, 4 warnings in 0.12s =======
func ParsePytest(output string) TestCounts {
	counts := TestCounts{}

	// Find passed count
	if match := pytestPassedRegex.FindStringSubmatch(output); len(match) >= 2 {
		counts.Passed, _ = strconv.Atoi(match[1])
		counts.Parsed = true
	}

	// Find failed count
	if match := pytestFailedRegex.FindStringSubmatch(output); len(match) >= 2 {
		counts.Failed, _ = strconv.Atoi(match[1])
		counts.Parsed = true
	}

	// Find skipped count
	if match := pytestSkippedRegex.FindStringSubmatch(output); len(match) >= 2 {
		counts.Skipped, _ = strconv.Atoi(match[1])
		counts.Parsed = true
	}

	if counts.Parsed {
		counts.Total = counts.Passed + counts.Failed + counts.Skipped
	}

	return counts
}
