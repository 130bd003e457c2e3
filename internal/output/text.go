package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/mrscan/internal/redact"
	"github.com/dshills/mrscan/internal/review"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}
	r := report.Result
	s := r.Summary

	ew.printf("mrscan review")
	if report.Source != "" {
		ew.printf(" (%s)", report.Source)
	}
	ew.println("")
	if mr := report.MergeRequest; mr.IID > 0 {
		ew.printf("Merge request: %s!%d %s\n", mr.ProjectID, mr.IID, mr.Title)
	}
	ew.println(strings.Repeat("─", 60))
	ew.printf("Score: %d/%d (%s)\n", r.Score, r.MaxScore, Rate(r.Score))
	ew.printf("Files: %d | +%d -%d | %d critical, %d warnings, %d suggestions\n",
		s.FilesAnalyzed, s.LinesAdded, s.LinesRemoved,
		s.CriticalIssues, s.Warnings, s.SuggestionCount)
	ew.println(strings.Repeat("─", 60))

	if len(r.Issues) == 0 && len(r.Suggestions) == 0 {
		ew.println("\nNo issues found. Looks good!")
		return ew.err
	}

	for _, sev := range []review.Severity{review.SeverityCritical, review.SeverityWarning} {
		var issues []review.Issue
		if sev == review.SeverityCritical {
			issues = r.CriticalIssues()
		} else {
			issues = r.WarningIssues()
		}
		if len(issues) == 0 {
			continue
		}

		ew.printf("\n%s %s\n", severityIcon(sev), strings.ToUpper(sev.String()))
		ew.println(strings.Repeat("─", 40))
		for _, is := range issues {
			ew.printf("\n  %s  %s (-%d)\n", location(is.File, is.Line), is.Kind, is.Penalty())
			for _, line := range wrapText(is.Message, 70) {
				ew.printf("    %s\n", line)
			}
			if is.Snippet != "" {
				ew.printf("    > %s\n", redact.Snippet(is.Snippet))
			}
		}
	}

	if len(r.Suggestions) > 0 {
		ew.printf("\n[-] SUGGESTIONS\n")
		ew.println(strings.Repeat("─", 40))
		for _, sg := range r.Suggestions {
			ew.printf("  %s  %s: %s\n", location(sg.File, sg.Line), sg.Kind, sg.Message)
		}
	}

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func location(file string, line int) string {
	if file == "" {
		file = "unknown"
	}
	if line > 0 {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return file
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return "[!!]"
	case review.SeverityWarning:
		return "[!]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
