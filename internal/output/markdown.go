package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/mrscan/internal/redact"
	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scm"
)

// MaxReportSuggestions is how many suggestions the report lists before
// summarizing the rest.
const MaxReportSuggestions = 5

const timestampLayout = "2006-01-02 15:04:05 MST"

// MarkdownWriter outputs the merge-request review report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *Report) error {
	now := report.GeneratedAt
	if now.IsZero() {
		now = time.Now()
	}
	_, err := io.WriteString(w, RenderReport(report.Result, report.MergeRequest, now))
	return err
}

// RenderReport renders the review comment for an analysis. The output only
// depends on its arguments.
func RenderReport(result review.AnalysisResult, meta scm.MergeRequest, now time.Time) string {
	var sb strings.Builder
	s := result.Summary

	sb.WriteString("## 🤖 Automated Code Review\n\n")
	if meta.IID > 0 {
		fmt.Fprintf(&sb, "**Merge request:** !%d %s\n", meta.IID, meta.Title)
		if meta.Author != "" {
			fmt.Fprintf(&sb, "**Author:** @%s\n", meta.Author)
		}
		if meta.SourceBranch != "" || meta.TargetBranch != "" {
			fmt.Fprintf(&sb, "**Branches:** `%s` → `%s`\n", meta.SourceBranch, meta.TargetBranch)
		}
		sb.WriteString("\n")
	}

	rating := Rate(result.Score)
	fmt.Fprintf(&sb, "### %s Score: %d/%d\n\n", scoreIcon(rating), result.Score, result.MaxScore)

	sb.WriteString("**📊 Statistics:**\n")
	fmt.Fprintf(&sb, "- 📁 Files analyzed: %d\n", s.FilesAnalyzed)
	fmt.Fprintf(&sb, "- ➕ Lines added: %d\n", s.LinesAdded)
	fmt.Fprintf(&sb, "- ➖ Lines removed: %d\n", s.LinesRemoved)
	fmt.Fprintf(&sb, "- 🚨 Critical issues: %d\n", s.CriticalIssues)
	fmt.Fprintf(&sb, "- ⚠️ Warnings: %d\n", s.Warnings)
	fmt.Fprintf(&sb, "- 💡 Suggestions: %d\n\n", s.SuggestionCount)

	if len(result.Issues) > 0 {
		sb.WriteString("### 🚨 Issues Found\n\n")
		writeIssues(&sb, "Critical", result.CriticalIssues(), true)
		writeIssues(&sb, "Warnings", result.WarningIssues(), false)
	}

	if len(result.Suggestions) > 0 {
		sb.WriteString("### 💡 Suggestions\n\n")
		shown := result.Suggestions
		if len(shown) > MaxReportSuggestions {
			shown = shown[:MaxReportSuggestions]
		}
		for i, sg := range shown {
			fmt.Fprintf(&sb, "%d. **%s** - %s\n", i+1, sg.Kind, sg.Message)
			if sg.File != "" {
				fmt.Fprintf(&sb, "   📄 File: `%s`\n", sg.File)
			}
			sb.WriteString("\n")
		}
		if extra := len(result.Suggestions) - len(shown); extra > 0 {
			fmt.Fprintf(&sb, "*%d more suggestions...*\n\n", extra)
		}
	}

	sb.WriteString("### 📋 Summary\n\n")
	switch rating {
	case RatingGood:
		sb.WriteString("✅ **Code quality is good.** Ready to merge.\n\n")
	case RatingFair:
		sb.WriteString("⚠️ **Code quality is fair, with room for improvement.** Consider addressing the issues above before merging.\n\n")
	default:
		sb.WriteString("❌ **Code quality needs work.** Resolve the critical issues and warnings before merging.\n\n")
	}

	fmt.Fprintf(&sb, "---\n*🤖 Generated by mrscan | %s*\n", now.UTC().Format(timestampLayout))
	return sb.String()
}

func writeIssues(sb *strings.Builder, label string, issues []review.Issue, withCode bool) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s (%d):**\n", label, len(issues))
	for i, is := range issues {
		fmt.Fprintf(sb, "%d. **%s** - %s\n", i+1, is.Kind, is.Message)
		if is.File != "" {
			fmt.Fprintf(sb, "   📄 File: `%s`\n", is.File)
		}
		if is.Line > 0 {
			fmt.Fprintf(sb, "   📍 Line: %d\n", is.Line)
		}
		if withCode && is.Snippet != "" {
			fmt.Fprintf(sb, "   💻 Code: %s\n", inlineCode(redact.Snippet(is.Snippet)))
		}
		sb.WriteString("\n")
	}
}

// InlineCommentBody renders the body of an inline comment for a critical
// issue.
func InlineCommentBody(is review.Issue) string {
	return fmt.Sprintf("🚨 **%s**: %s", is.Kind, is.Message)
}

// inlineCode wraps s in a code span that survives embedded backticks.
func inlineCode(s string) string {
	if !strings.Contains(s, "`") {
		return "`" + s + "`"
	}
	return "`` " + s + " ``"
}

func scoreIcon(r Rating) string {
	switch r {
	case RatingGood:
		return "🟢"
	case RatingFair:
		return "🟡"
	default:
		return "🔴"
	}
}
