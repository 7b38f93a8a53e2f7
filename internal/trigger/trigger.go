// Package trigger resolves the event that starts a pipeline invocation.
package trigger

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
)

// Kind identifies a trigger event kind.
type Kind string

const (
	KindBranchPush  Kind = "push"
	KindPullRequest Kind = "pull_request"
	KindSchedule    Kind = "schedule"
	KindManual      Kind = "manual"
	KindTagPush     Kind = "tag"
)

// Event sources.
const (
	SourceFlags       = "flags"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
)

// Host CI environment variables consulted by FromEnvironment.
const (
	envEventName = "GITHUB_EVENT_NAME"
	envRef       = "GITHUB_REF"
	envHeadRef   = "GITHUB_HEAD_REF"
	envSHA       = "GITHUB_SHA"
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind maps a user-supplied kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "push", "branch", "branch-push":
		return KindBranchPush, nil
	case "pull_request", "pull-request", "pr":
		return KindPullRequest, nil
	case "schedule", "cron":
		return KindSchedule, nil
	case "manual", "dispatch", "workflow_dispatch":
		return KindManual, nil
	case "tag", "tag-push", "release":
		return KindTagPush, nil
	}
	return "", errors.Configf("unknown trigger kind %q (expected push, pull_request, schedule, manual, or tag)", s)
}

// Event describes the trigger of one pipeline invocation.
type Event struct {
	Kind   Kind   `json:"kind"`
	Ref    string `json:"ref,omitempty"`
	Branch string `json:"branch,omitempty"`
	Tag    string `json:"tag,omitempty"`
	SHA    string `json:"sha,omitempty"`
	Source string `json:"source"`
}

// Describe returns a one-line human description of the event.
func (e Event) Describe() string {
	switch e.Kind {
	case KindBranchPush:
		if e.Branch != "" {
			return fmt.Sprintf("push to %s", e.Branch)
		}
		return "branch push"
	case KindPullRequest:
		if e.Branch != "" {
			return fmt.Sprintf("pull request from %s", e.Branch)
		}
		return "pull request"
	case KindSchedule:
		return "scheduled run"
	case KindTagPush:
		if e.Tag != "" {
			return fmt.Sprintf("tag %s", e.Tag)
		}
		return "tag push"
	default:
		return "manual dispatch"
	}
}

// FromEnvironment builds an event from the host CI's variables. When no
// event information is present the result is a manual dispatch.
func FromEnvironment() Event {
	ref := os.Getenv(envRef)
	ev := Event{
		Ref:    ref,
		SHA:    os.Getenv(envSHA),
		Source: SourceEnvironment,
	}

	switch os.Getenv(envEventName) {
	case "":
		ev.Kind = KindManual
		ev.Source = SourceDefault
	case "push":
		if strings.HasPrefix(ref, "refs/tags/") {
			ev.Kind = KindTagPush
			ev.Tag = strings.TrimPrefix(ref, "refs/tags/")
		} else {
			ev.Kind = KindBranchPush
			ev.Branch = strings.TrimPrefix(ref, "refs/heads/")
		}
	case "pull_request", "pull_request_target":
		ev.Kind = KindPullRequest
		if head := os.Getenv(envHeadRef); head != "" {
			ev.Branch = head
		}
	case "schedule":
		ev.Kind = KindSchedule
	case "workflow_dispatch":
		ev.Kind = KindManual
	default:
		// Unrecognized host events run as manual dispatches rather than
		// failing the invocation before it starts.
		ev.Kind = KindManual
	}

	return ev
}

// Resolve combines explicit flag values with the host environment. Flags win;
// with no flags the environment decides; with neither the event is a manual
// dispatch.
func Resolve(onFlag, tagFlag, refFlag string) (Event, error) {
	if onFlag == "" && tagFlag == "" && refFlag == "" {
		return FromEnvironment(), nil
	}

	ev := Event{
		Ref:    refFlag,
		SHA:    os.Getenv(envSHA),
		Source: SourceFlags,
	}

	if onFlag != "" {
		kind, err := ParseKind(onFlag)
		if err != nil {
			return Event{}, err
		}
		ev.Kind = kind
	} else if tagFlag != "" {
		ev.Kind = KindTagPush
	} else {
		env := FromEnvironment()
		ev.Kind = env.Kind
	}

	switch ev.Kind {
	case KindTagPush:
		ev.Tag = tagFlag
		if ev.Tag == "" && strings.HasPrefix(refFlag, "refs/tags/") {
			ev.Tag = strings.TrimPrefix(refFlag, "refs/tags/")
		}
		if ev.Tag == "" {
			return Event{}, errors.Config("tag trigger requires --tag (or --ref refs/tags/<tag>)")
		}
		if ev.Ref == "" {
			ev.Ref = "refs/tags/" + ev.Tag
		}
	case KindBranchPush:
		ev.Branch = strings.TrimPrefix(refFlag, "refs/heads/")
	case KindPullRequest:
		ev.Branch = strings.TrimPrefix(refFlag, "refs/heads/")
	}

	return ev, nil
}

// Allowed checks the event against the declared triggers. An event of an
// undeclared kind refuses the invocation with a config error.
func Allowed(t *config.TriggersConfig, ev Event) error {
	switch ev.Kind {
	case KindBranchPush:
		if !t.PushEnabled() {
			return errors.Config("branch push triggers are not declared in gantry.yaml")
		}
		if ev.Branch != "" && !branchMatches(t.Branches, ev.Branch) {
			return errors.Configf("branch %q does not match any declared push branch", ev.Branch)
		}
	case KindPullRequest:
		if !t.PullRequestEnabled() {
			return errors.Config("pull request triggers are not declared in gantry.yaml")
		}
	case KindSchedule:
		if !t.ScheduleEnabled() {
			return errors.Config("scheduled triggers are not declared in gantry.yaml")
		}
	case KindManual:
		if !t.ManualEnabled() {
			return errors.Config("manual dispatch is not declared in gantry.yaml")
		}
	case KindTagPush:
		if !t.TagsEnabled() {
			return errors.Config("tag push triggers are not declared in gantry.yaml")
		}
		re, err := TagGlobRegexp(t.TagGlob())
		if err != nil {
			return errors.Configf("invalid tag glob %q: %v", t.TagGlob(), err)
		}
		if !re.MatchString(ev.Tag) {
			return errors.Configf("tag %q does not match declared tag pattern %q", ev.Tag, t.TagGlob())
		}
	default:
		return errors.Configf("unknown trigger kind %q", ev.Kind)
	}
	return nil
}

// branchMatches reports whether the branch matches any declared pattern.
// Patterns use path globbing, so release/* works.
func branchMatches(patterns []string, branch string) bool {
	for _, p := range patterns {
		if p == branch {
			return true
		}
		if ok, err := path.Match(p, branch); err == nil && ok {
			return true
		}
	}
	return false
}
