package runner

import (
	"errors"
	"time"

	"github.com/gantryci/gantry/internal/annotation"
	"github.com/gantryci/gantry/internal/trigger"
)

// Status is the terminal state of one environment run.
// Every environment of an invocation reaches exactly one of these.
type Status string

const (
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Invocation is one verification run over the matrix. It is the unit the
// run report, the publish gate, and external reporting all work from.
type Invocation struct {
	ID        string        `json:"id"`
	Project   string        `json:"project"`
	Event     trigger.Event `json:"event"`
	Started   time.Time     `json:"started"`
	Finished  time.Time     `json:"finished"`
	Results   []Result      `json:"results"`
	GateOpen  bool          `json:"gate_open"`
	Published bool          `json:"published"`

	// PublishedArtifacts records what the publish stage uploaded.
	PublishedArtifacts []PublishedArtifact `json:"published_artifacts,omitempty"`
}

// PublishedArtifact is one uploaded distribution file.
type PublishedArtifact struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

// Result is the terminal record of one environment.
type Result struct {
	Env      string          `json:"env"`
	Kind     string          `json:"kind"`
	Python   string          `json:"python"`
	Status   Status          `json:"status"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Commands []CommandResult `json:"commands,omitempty"`
	Error    string          `json:"error,omitempty"`

	// Annotations carries the proc.* lines scanned from captured output.
	// They enrich the report only; pass/fail stays exit-code-driven.
	Annotations *annotation.Report     `json:"annotations,omitempty"`
	Tests       *annotation.TestCounts `json:"tests,omitempty"`
}

// CommandResult records one executed command of an environment.
type CommandResult struct {
	Command    string `json:"command"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
}

// Duration returns how long the environment ran.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// finish stamps the terminal state onto the result.
func (r Result) finish(status Status, err error) Result {
	r.Status = status
	r.Finished = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Duration returns how long the invocation ran.
func (inv *Invocation) Duration() time.Duration {
	return inv.Finished.Sub(inv.Started)
}

// AllPassed reports whether every environment reached Passed.
// An invocation with no results did not verify anything and reports false.
func (inv *Invocation) AllPassed() bool {
	if len(inv.Results) == 0 {
		return false
	}
	for _, res := range inv.Results {
		if res.Status != StatusPassed {
			return false
		}
	}
	return true
}

// Counts returns the per-status environment counts.
func (inv *Invocation) Counts() (passed, failed, cancelled int) {
	for _, res := range inv.Results {
		switch res.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusCancelled:
			cancelled++
		}
	}
	return passed, failed, cancelled
}

// TestTotals aggregates parsed test counts across environments.
func (inv *Invocation) TestTotals() annotation.TestCounts {
	var totals annotation.TestCounts
	for i := range inv.Results {
		totals.Add(inv.Results[i].Tests)
	}
	return totals
}

// Err returns the combined failure of the invocation: one joined error over
// all environments that did not pass, nil when everything passed.
func (inv *Invocation) Err() error {
	var errs []error
	for _, res := range inv.Results {
		switch res.Status {
		case StatusFailed:
			errs = append(errs, errors.New(res.Error))
		case StatusCancelled:
			errs = append(errs, errors.New("["+res.Env+"] cancelled"))
		}
	}
	return errors.Join(errs...)
}
