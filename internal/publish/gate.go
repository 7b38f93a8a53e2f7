// Package publish implements the gated build-and-upload stage that runs
// after a fully passing verification matrix.
package publish

import (
	"github.com/gantryci/gantry/internal/runner"
	"github.com/gantryci/gantry/internal/trigger"
	"github.com/gantryci/gantry/internal/version"
)

// Gate reports whether the publish stage may run for the given invocation.
// It opens only when every environment of the full matrix reached a passing
// terminal state and the trigger is a tag push whose tag looks like a
// release version. A cancelled or missing result keeps the gate closed.
func Gate(inv *runner.Invocation, matrixSize int) bool {
	if inv == nil || matrixSize == 0 || len(inv.Results) != matrixSize {
		return false
	}
	for _, res := range inv.Results {
		if res.Status != runner.StatusPassed {
			return false
		}
	}
	if inv.Event.Kind != trigger.KindTagPush {
		return false
	}
	return version.IsReleaseTag(inv.Event.Tag)
}
