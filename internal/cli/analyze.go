package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/mrscan/internal/config"
	"github.com/dshills/mrscan/internal/gitctx"
	"github.com/dshills/mrscan/internal/output"
	"github.com/dshills/mrscan/internal/review"
)

// Shared analyze flags
var (
	flagPaths        string
	flagExclude      string
	flagContextLines int
	flagFormat       string
	flagOut          string
	flagFailUnder    int
	flagMergeBase    bool
)

func addAnalyzeFlags(cmd *cobra.Command) {
	addCommonFlags(cmd)
	cmd.Flags().StringVar(&flagPaths, "paths", "", "Include file path globs (comma-separated)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format (text, json, markdown, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().IntVar(&flagFailUnder, "fail-under", 0, "Exit 1 when the score is below this value (0 disables)")
}

func buildDiffOpts() gitctx.DiffOptions {
	return gitctx.DiffOptions{
		ContextLines: flagContextLines,
		Include:      splitComma(flagPaths),
		Exclude:      splitComma(flagExclude),
	}
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// analyzeSource names the input of a local analysis.
func analyzeSource(diff gitctx.DiffResult) string {
	if diff.Range != "" {
		return diff.Mode + " " + diff.Range
	}
	return diff.Mode
}

// runAnalyze evaluates a local change-set, writes the report and applies
// the --fail-under gate.
func runAnalyze(diff gitctx.DiffResult, cfg config.Config) {
	rules, err := cfg.RuleSet()
	if err != nil {
		fail(err)
		return
	}
	result := review.NewEngine(rules).Evaluate(diff.Changes)

	report := &output.Report{
		Result:      result,
		Source:      analyzeSource(diff),
		Version:     version,
		GeneratedAt: time.Now(),
	}
	if err := output.WriteReport(report, flagFormat, flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if flagFailUnder > 0 && result.Score < flagFailUnder {
		fmt.Fprintf(os.Stderr, "mrscan: score %d is below %d\n", result.Score, flagFailUnder)
		exitCode = ExitFindings
	}
}

func checkFormat() error {
	if _, err := output.GetWriter(flagFormat); err != nil {
		return err
	}
	return nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze local changes",
	Long:  "Score local git changes or a patch file with the same rules the review bot applies to merge requests.",
}

// localAnalyzeCmd builds an analyze subcommand around a change-set source.
func localAnalyzeCmd(use, short string, args cobra.PositionalArgs, collect func(args []string, opts gitctx.DiffOptions) (gitctx.DiffResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(); err != nil {
				return err
			}
			cfg, err := loadConfig(nil)
			if err != nil {
				fail(err)
				return nil
			}
			diff, err := collect(args, buildDiffOpts())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			runAnalyze(diff, cfg)
			return nil
		},
	}
}

var analyzeUnstagedCmd = localAnalyzeCmd("unstaged", "Analyze unstaged changes (working tree vs index)", cobra.NoArgs,
	func(_ []string, opts gitctx.DiffOptions) (gitctx.DiffResult, error) {
		return gitctx.Unstaged(opts)
	})

var analyzeStagedCmd = localAnalyzeCmd("staged", "Analyze staged changes (index vs HEAD)", cobra.NoArgs,
	func(_ []string, opts gitctx.DiffOptions) (gitctx.DiffResult, error) {
		return gitctx.Staged(opts)
	})

var analyzeRangeCmd = localAnalyzeCmd("range <revRange>", "Analyze a revision range (e.g., origin/main..HEAD)", cobra.ExactArgs(1),
	func(args []string, opts gitctx.DiffOptions) (gitctx.DiffResult, error) {
		return gitctx.Range(args[0], flagMergeBase, opts)
	})

var analyzePatchCmd = localAnalyzeCmd("patch <file|->", "Analyze a unified diff from a file or stdin", cobra.ExactArgs(1),
	func(args []string, opts gitctx.DiffOptions) (gitctx.DiffResult, error) {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return gitctx.DiffResult{}, fmt.Errorf("opening patch: %w", err)
			}
			defer f.Close()
			r = f
		}
		return gitctx.ReadPatch(r, opts)
	})

func init() {
	for _, cmd := range []*cobra.Command{
		analyzeUnstagedCmd,
		analyzeStagedCmd,
		analyzeRangeCmd,
		analyzePatchCmd,
	} {
		analyzeCmd.AddCommand(cmd)
		addAnalyzeFlags(cmd)
	}

	// Range-specific flags
	analyzeRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Use merge base for branch comparisons")
}
