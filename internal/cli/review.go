package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/mrscan/internal/config"
	"github.com/dshills/mrscan/internal/github"
	"github.com/dshills/mrscan/internal/gitlab"
	"github.com/dshills/mrscan/internal/orchestrator"
	"github.com/dshills/mrscan/internal/output"
	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scm"
)

// Source-control kinds accepted by --scm.
const (
	scmGitLab = "gitlab"
	scmGitHub = "github"
)

var (
	flagSCM          string
	flagDryRun       bool
	flagReviewFormat string
)

var reviewCmd = &cobra.Command{
	Use:   "review [project] <mr>",
	Short: "Review a merge request",
	Long: `Fetch a merge request, score it, post the report and inline comments, and
approve it when review is enabled and the score reaches the threshold.

For GitLab the project is the numeric ID or the URL-encoded path. For GitHub
it is owner/repo and is detected from the origin remote when omitted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := output.GetWriter(flagReviewFormat); err != nil {
			return err
		}
		mrArg := args[len(args)-1]
		mrID, err := strconv.Atoi(mrArg)
		if err != nil || mrID <= 0 {
			fmt.Fprintf(os.Stderr, "Error: invalid merge request number %q\n", mrArg)
			exitCode = ExitUsageError
			return nil
		}
		if flagSCM != scmGitLab && flagSCM != scmGitHub {
			fmt.Fprintf(os.Stderr, "Error: unknown --scm %q (want gitlab or github)\n", flagSCM)
			exitCode = ExitUsageError
			return nil
		}

		cfg, err := loadConfig(nil)
		if err != nil {
			fail(err)
			return nil
		}
		log := newLogger(cfg)
		ctx := context.Background()

		projectID, err := resolveProject(ctx, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		client, err := newSCMClient(ctx, cfg, flagSCM, log)
		if err != nil {
			fail(err)
			return nil
		}
		o, err := newOrchestrator(cfg, client, nil, log)
		if err != nil {
			fail(err)
			return nil
		}

		run := o.Run
		if flagDryRun {
			run = o.DryRun
		}
		out, err := run(ctx, projectID, mrID)
		if err != nil {
			fail(err)
			return nil
		}

		report := &output.Report{
			Result:       out.Result,
			MergeRequest: out.MergeRequest,
			Source:       flagSCM,
			Version:      version,
			GeneratedAt:  time.Now(),
		}
		if err := output.WriteReport(report, flagReviewFormat, flagOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		printOutcome(out, flagDryRun)

		if flagFailUnder > 0 && out.Result.Score < flagFailUnder {
			exitCode = ExitFindings
		}
		return nil
	},
}

// resolveProject picks the project from the arguments, falling back to the
// origin remote for GitHub.
func resolveProject(ctx context.Context, args []string) (string, error) {
	if len(args) == 2 {
		return args[0], nil
	}
	if flagSCM == scmGitHub {
		repo, err := github.DetectRepo(ctx)
		if err != nil {
			return "", fmt.Errorf("%w; pass owner/repo explicitly", err)
		}
		return repo, nil
	}
	return "", fmt.Errorf("a project is required for gitlab")
}

// newSCMClient builds the collaborator for kind from config.
func newSCMClient(ctx context.Context, cfg config.Config, kind string, log zerolog.Logger) (scm.Client, error) {
	switch kind {
	case scmGitLab:
		if cfg.GitLab.Token == "" {
			return nil, fmt.Errorf("gitlab: %w (set GITLAB_TOKEN)", errMissingToken)
		}
		return gitlab.NewClient(gitlab.Options{
			BaseURL: cfg.GitLab.URL,
			Token:   cfg.GitLab.Token,
			Timeout: cfg.GitLabTimeout(),
			Logger:  log,
		})
	case scmGitHub:
		if cfg.GitHub.Token == "" {
			return nil, fmt.Errorf("github: %w (set GITHUB_TOKEN)", errMissingToken)
		}
		return github.NewClient(ctx, github.Options{
			BaseURL: cfg.GitHub.APIURL,
			Token:   cfg.GitHub.Token,
			Logger:  log,
		})
	default:
		return nil, fmt.Errorf("unknown source control %q", kind)
	}
}

func newOrchestrator(cfg config.Config, client scm.Client, d orchestrator.Dispatcher, log zerolog.Logger) (*orchestrator.Orchestrator, error) {
	rules, err := cfg.RuleSet()
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Options{
		Engine:    review.NewEngine(rules),
		Client:    client,
		Scheduler: d,
		Settings:  cfg.ReviewSettings(),
		Logger:    log,
	})
}

func printOutcome(out *orchestrator.Outcome, dryRun bool) {
	if dryRun {
		fmt.Fprintf(os.Stderr, "Dry run: score %d/%d, nothing posted.\n", out.Result.Score, out.Result.MaxScore)
		return
	}
	status := "not approved"
	if out.Approved {
		status = "approved"
	}
	fmt.Fprintf(os.Stderr, "Reviewed %s!%d: score %d/%d, %s, %d inline comments posted.\n",
		out.ProjectID, out.MergeRequestID, out.Result.Score, out.Result.MaxScore, status, out.InlinePosted)
	if !out.SummaryPosted {
		fmt.Fprintln(os.Stderr, "Warning: the summary comment was not posted.")
	}
	for _, f := range out.Failures {
		fmt.Fprintf(os.Stderr, "Warning: %s failed: %v\n", f.Step, f.Err)
	}
}

func init() {
	addCommonFlags(reviewCmd)
	reviewCmd.Flags().StringVar(&flagSCM, "scm", scmGitLab, "Source control (gitlab, github)")
	reviewCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Fetch and analyze but don't post anything")
	reviewCmd.Flags().StringVar(&flagReviewFormat, "format", "markdown", "Output format (text, json, markdown, sarif)")
	reviewCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	reviewCmd.Flags().IntVar(&flagFailUnder, "fail-under", 0, "Exit 1 when the score is below this value (0 disables)")
}
