package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/gantryci/gantry/internal/output"
)

// PrintSummary prints the invocation summary: per-environment outcomes with
// durations, aggregate counts, test totals, trigger, and the gate/publish
// decision when the invocation carries one.
func PrintSummary(inv *Invocation, out *output.Writer) {
	out.SummaryHeader("Run Summary")

	out.SummarySectionLabel("Environments:")
	for _, res := range inv.Results {
		errMsg := res.Error
		if res.Status == StatusCancelled {
			errMsg = "cancelled"
		}
		out.SummaryAction(res.Env, res.Status == StatusPassed, FormatDuration(res.Duration()), errMsg)
	}
	out.Println("")

	var passed, failed, cancelled []string
	for _, res := range inv.Results {
		switch res.Status {
		case StatusPassed:
			passed = append(passed, res.Env)
		case StatusFailed:
			failed = append(failed, res.Env)
		case StatusCancelled:
			cancelled = append(cancelled, res.Env)
		}
	}

	if len(passed) > 0 {
		out.SummaryPassed("Passed", strings.Join(passed, ", "))
	}
	if len(failed) > 0 {
		out.SummaryFailed("Failed", strings.Join(failed, ", "))
	}
	if len(cancelled) > 0 {
		out.SummaryItem("Cancelled", strings.Join(cancelled, ", "))
	}

	if totals := inv.TestTotals(); totals.Parsed {
		out.SummaryItem("Tests", fmt.Sprintf("%d passed, %d failed, %d skipped",
			totals.Passed, totals.Failed, totals.Skipped))
	}

	out.SummaryItem("Duration", FormatDuration(inv.Duration()))
	out.SummaryItem("Trigger", inv.Event.Describe())

	if inv.GateOpen {
		out.SummaryItem("Publish gate", "open")
	} else {
		out.SummaryItem("Publish gate", "closed")
	}
	if inv.Published {
		names := make([]string, len(inv.PublishedArtifacts))
		for i, a := range inv.PublishedArtifacts {
			names[i] = a.Name
		}
		out.SummaryItem("Published", strings.Join(names, ", "))
	}

	if inv.AllPassed() {
		out.FinalSuccess("All environments passed.")
	} else {
		out.FinalFailure("Verification failed.")
	}
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
