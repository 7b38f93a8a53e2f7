package report

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/runner"
	"github.com/gantryci/gantry/internal/trigger"
)

// maxCheckRunTextLen is the Checks API cap on the text block.
const maxCheckRunTextLen = 65535

const (
	githubTokenEnv        = "GANTRY_GITHUB_TOKEN"
	githubAmbientTokenEnv = "GITHUB_TOKEN"
	defaultCheckRunPrefix = "gantry"
)

// GitHubEnabled reports whether check-run reporting is configured and the
// event carries a commit to attach checks to.
func GitHubEnabled(cfg *config.Config, ev trigger.Event) bool {
	gh := githubConfig(cfg)
	return gh != nil && gh.Owner != "" && gh.Repo != "" && ev.SHA != ""
}

func githubConfig(cfg *config.Config) *config.GitHubReportConfig {
	if cfg.Report == nil {
		return nil
	}
	return cfg.Report.GitHub
}

// NewGitHubClient builds an authenticated API client. A token from the
// environment wins; otherwise the App installation key triple is used.
func NewGitHubClient(ctx context.Context, gh *config.GitHubReportConfig) (*gogithub.Client, error) {
	if token := githubToken(); token != "" {
		httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		return gogithub.NewClient(httpClient), nil
	}

	if gh.AppID != 0 && gh.InstallationID != 0 && gh.PrivateKey != "" {
		key, err := os.ReadFile(gh.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("reading App key: %w", err)
		}
		transport, err := ghinstallation.New(http.DefaultTransport, gh.AppID, gh.InstallationID, key)
		if err != nil {
			return nil, fmt.Errorf("creating installation transport: %w", err)
		}
		return gogithub.NewClient(&http.Client{Transport: transport}), nil
	}

	return nil, errors.Setupf("github reporting configured but no credentials: set %s, or app_id, installation_id, and private_key",
		githubTokenEnv)
}

func githubToken() string {
	if token := os.Getenv(githubTokenEnv); token != "" {
		return token
	}
	return os.Getenv(githubAmbientTokenEnv)
}

// CheckReporter posts one completed check run per environment plus one for
// the invocation. Reporting failures never alter the verification outcome;
// the caller surfaces them as warnings.
type CheckReporter struct {
	client *gogithub.Client
	owner  string
	repo   string
	prefix string
}

// NewCheckReporter creates a reporter for the given repository.
func NewCheckReporter(client *gogithub.Client, owner, repo string) *CheckReporter {
	return &CheckReporter{client: client, owner: owner, repo: repo, prefix: defaultCheckRunPrefix}
}

// Report posts all check runs for the invocation. Every run is attempted;
// the combined error covers the ones that failed.
func (r *CheckReporter) Report(ctx context.Context, inv *runner.Invocation) error {
	var errs []error
	for _, res := range inv.Results {
		if err := r.reportResult(ctx, inv, res); err != nil {
			errs = append(errs, fmt.Errorf("check run for %s: %w", res.Env, err))
		}
	}
	if err := r.reportInvocation(ctx, inv); err != nil {
		errs = append(errs, fmt.Errorf("invocation check run: %w", err))
	}
	return stderrors.Join(errs...)
}

func (r *CheckReporter) reportResult(ctx context.Context, inv *runner.Invocation, res runner.Result) error {
	_, _, err := r.client.Checks.CreateCheckRun(ctx, r.owner, r.repo, gogithub.CreateCheckRunOptions{
		Name:       fmt.Sprintf("%s / %s", r.prefix, res.Env),
		HeadSHA:    inv.Event.SHA,
		Status:     gogithub.Ptr("completed"),
		Conclusion: gogithub.Ptr(conclusion(res.Status)),
		Output: &gogithub.CheckRunOutput{
			Title:   gogithub.Ptr(resultTitle(res)),
			Summary: gogithub.Ptr(resultSummary(res)),
			Text:    gogithub.Ptr(truncate(resultText(res))),
		},
	})
	return err
}

func (r *CheckReporter) reportInvocation(ctx context.Context, inv *runner.Invocation) error {
	conc := "failure"
	if inv.AllPassed() {
		conc = "success"
	}

	_, _, err := r.client.Checks.CreateCheckRun(ctx, r.owner, r.repo, gogithub.CreateCheckRunOptions{
		Name:       r.prefix,
		HeadSHA:    inv.Event.SHA,
		Status:     gogithub.Ptr("completed"),
		Conclusion: gogithub.Ptr(conc),
		Output: &gogithub.CheckRunOutput{
			Title:   gogithub.Ptr("Verification"),
			Summary: gogithub.Ptr(invocationSummary(inv)),
			Text:    gogithub.Ptr(truncate(invocationText(inv))),
		},
	})
	return err
}

func conclusion(status runner.Status) string {
	switch status {
	case runner.StatusPassed:
		return "success"
	case runner.StatusCancelled:
		return "cancelled"
	default:
		return "failure"
	}
}

func resultTitle(res runner.Result) string {
	titleCase := cases.Title(language.English)
	return fmt.Sprintf("%s: %s", titleCase.String(res.Kind), res.Env)
}

func resultSummary(res runner.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s in %s (python %s)", res.Status, runner.FormatDuration(res.Duration()), res.Python)
	if res.Tests != nil && res.Tests.Parsed {
		fmt.Fprintf(&sb, " — %d passed, %d failed, %d skipped",
			res.Tests.Passed, res.Tests.Failed, res.Tests.Skipped)
	}
	return sb.String()
}

func resultText(res runner.Result) string {
	var sb strings.Builder

	if len(res.Commands) > 0 {
		sb.WriteString("| Command | Exit | Duration |\n")
		sb.WriteString("|---------|------|----------|\n")
		for _, cmd := range res.Commands {
			fmt.Fprintf(&sb, "| `%s` | %d | %s |\n",
				cmd.Command, cmd.ExitCode, runner.FormatDuration(time.Duration(cmd.DurationMS)*time.Millisecond))
		}
	}

	if res.Error != "" {
		fmt.Fprintf(&sb, "\n```\n%s\n```\n", res.Error)
	}

	if res.Annotations != nil && len(res.Annotations.Errors) > 0 {
		sb.WriteString("\nReported errors:\n\n")
		for _, msg := range res.Annotations.Errors {
			fmt.Fprintf(&sb, "- %s\n", msg)
		}
	}

	return sb.String()
}

func invocationSummary(inv *runner.Invocation) string {
	passed, failed, cancelled := inv.Counts()
	summary := fmt.Sprintf("%d passed, %d failed, %d cancelled in %s",
		passed, failed, cancelled, runner.FormatDuration(inv.Duration()))
	if inv.GateOpen {
		summary += " — publish gate open"
	}
	return summary
}

func invocationText(inv *runner.Invocation) string {
	var sb strings.Builder

	sb.WriteString("| Environment | Status | Duration |\n")
	sb.WriteString("|-------------|--------|----------|\n")
	for _, res := range inv.Results {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", res.Env, res.Status, runner.FormatDuration(res.Duration()))
	}

	if inv.Published {
		sb.WriteString("\nPublished:\n\n")
		for _, a := range inv.PublishedArtifacts {
			fmt.Fprintf(&sb, "- `%s` (sha256 %s)\n", a.Name, a.SHA256)
		}
	}

	return sb.String()
}

func truncate(text string) string {
	if len(text) > maxCheckRunTextLen {
		truncMsg := "\n\n... (output truncated)"
		return text[:maxCheckRunTextLen-len(truncMsg)] + truncMsg
	}
	return text
}
