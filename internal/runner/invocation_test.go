package runner

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gantryci/gantry/internal/annotation"
	"github.com/gantryci/gantry/internal/trigger"
)

func sampleInvocation() *Invocation {
	started := time.Date(2024, 3, 1, 2, 30, 0, 0, time.UTC)
	return &Invocation{
		ID:      "0f4f6a7e-0000-0000-0000-000000000000",
		Project: "my-runtime-utils",
		Event:   trigger.Event{Kind: trigger.KindTagPush, Ref: "refs/tags/1.2.3", Tag: "1.2.3"},
		Started: started,
		Results: []Result{
			{
				Env: "py38", Kind: "test", Python: "3.8", Status: StatusPassed,
				Started: started, Finished: started.Add(40 * time.Second),
				Tests: &annotation.TestCounts{Passed: 10, Total: 10, Parsed: true},
			},
			{
				Env: "py39", Kind: "test", Python: "3.9", Status: StatusFailed,
				Started: started, Finished: started.Add(35 * time.Second),
				Error: "[py39] pytest: exit status 1",
				Tests: &annotation.TestCounts{Passed: 8, Failed: 2, Total: 10, Parsed: true},
			},
			{
				Env: "linters", Kind: "lint", Python: "3.8", Status: StatusCancelled,
				Started: started, Finished: started.Add(time.Second),
			},
		},
		Finished: started.Add(41 * time.Second),
	}
}

func TestInvocation_Counts(t *testing.T) {
	t.Parallel()
	inv := sampleInvocation()

	passed, failed, cancelled := inv.Counts()
	if passed != 1 || failed != 1 || cancelled != 1 {
		t.Errorf("Counts() = (%d, %d, %d), want (1, 1, 1)", passed, failed, cancelled)
	}
}

func TestInvocation_AllPassed(t *testing.T) {
	t.Parallel()

	inv := sampleInvocation()
	if inv.AllPassed() {
		t.Error("AllPassed() = true with failures present")
	}

	for i := range inv.Results {
		inv.Results[i].Status = StatusPassed
	}
	if !inv.AllPassed() {
		t.Error("AllPassed() = false with all passed")
	}

	empty := &Invocation{}
	if empty.AllPassed() {
		t.Error("AllPassed() = true for an empty invocation")
	}
}

func TestInvocation_TestTotals(t *testing.T) {
	t.Parallel()
	inv := sampleInvocation()

	totals := inv.TestTotals()
	if !totals.Parsed {
		t.Fatal("TestTotals().Parsed = false")
	}
	if totals.Passed != 18 || totals.Failed != 2 || totals.Total != 20 {
		t.Errorf("TestTotals() = %+v, want 18 passed, 2 failed, 20 total", totals)
	}
}

func TestInvocation_Err(t *testing.T) {
	t.Parallel()

	inv := sampleInvocation()
	err := inv.Err()
	if err == nil {
		t.Fatal("Err() = nil with failures present")
	}
	msg := err.Error()
	if !strings.Contains(msg, "[py39] pytest") {
		t.Errorf("Err() = %q, want failed environment included", msg)
	}
	if !strings.Contains(msg, "[linters] cancelled") {
		t.Errorf("Err() = %q, want cancelled environment included", msg)
	}

	for i := range inv.Results {
		inv.Results[i].Status = StatusPassed
	}
	if err := inv.Err(); err != nil {
		t.Errorf("Err() = %v with all passed, want nil", err)
	}
}

func TestInvocation_JSONRoundTrip(t *testing.T) {
	t.Parallel()
	inv := sampleInvocation()
	inv.GateOpen = true
	inv.Published = true
	inv.PublishedArtifacts = []PublishedArtifact{
		{Name: "pkg-1.2.3.tar.gz", SHA256: "deadbeef"},
	}

	data, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got Invocation
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.ID != inv.ID || got.Project != inv.Project {
		t.Errorf("round trip lost identity: %+v", got)
	}
	if len(got.Results) != 3 {
		t.Fatalf("round trip lost results: %d", len(got.Results))
	}
	if got.Results[1].Status != StatusFailed || got.Results[1].Error == "" {
		t.Errorf("round trip lost failure detail: %+v", got.Results[1])
	}
	if got.Event.Kind != trigger.KindTagPush || got.Event.Tag != "1.2.3" {
		t.Errorf("round trip lost event: %+v", got.Event)
	}
	if !got.GateOpen || !got.Published || len(got.PublishedArtifacts) != 1 {
		t.Errorf("round trip lost publish record: %+v", got)
	}
}

func TestResult_Duration(t *testing.T) {
	t.Parallel()
	inv := sampleInvocation()
	if d := inv.Results[0].Duration(); d != 40*time.Second {
		t.Errorf("Duration() = %v, want 40s", d)
	}
	if d := inv.Duration(); d != 41*time.Second {
		t.Errorf("invocation Duration() = %v, want 41s", d)
	}
}
