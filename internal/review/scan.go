package review

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	todoRe       = regexp.MustCompile(`(?i)(?:TODO|FIXME|XXX|HACK)`)
	emptyCatchRe = regexp.MustCompile(`catch\s*\(\s*\w*\s*\)\s*\{\s*\}`)
	declRe       = regexp.MustCompile(`(?:let|const|var)\s+([a-zA-Z_$][a-zA-Z0-9_$]*)`)
	namedFuncRe  = regexp.MustCompile(`function\s+\w+`)
	arrowBlockRe = regexp.MustCompile(`=>\s*\{`)
)

// loopCounters are single-letter names that are not reported.
var loopCounters = map[string]bool{"i": true, "j": true, "k": true}

// findings accumulates the output of the scanners for one file.
type findings struct {
	issues      []Issue
	suggestions []Suggestion
}

func (f *findings) issue(i Issue) { f.issues = append(f.issues, i) }

func (f *findings) suggest(s Suggestion) { f.suggestions = append(f.suggestions, s) }

func (f *findings) merge(other findings) {
	f.issues = append(f.issues, other.issues...)
	f.suggestions = append(f.suggestions, other.suggestions...)
}

// scanFile runs every scanner over one file's added lines in a fixed order:
// file size, then each line, then required patterns.
func scanFile(rs *RuleSet, file string, lines []AddedLine) findings {
	var out findings
	out.merge(scanFileSize(rs, file, lines))
	for _, line := range lines {
		out.merge(scanLine(rs, file, line))
	}
	out.merge(scanRequiredPatterns(rs, file, lines))
	return out
}

func scanLine(rs *RuleSet, file string, line AddedLine) findings {
	var out findings
	out.merge(scanDangerousPatterns(rs, file, line))
	out.merge(scanLineLength(rs, file, line))
	out.merge(scanTodo(file, line))
	out.merge(scanEmptyCatch(file, line))
	out.merge(scanNaming(file, line))
	out.merge(scanFunctionIntroduction(file, line))
	return out
}

func scanFileSize(rs *RuleSet, file string, lines []AddedLine) findings {
	var out findings
	if len(lines) > rs.MaxFileSize() {
		out.issue(Issue{
			Kind:     IssueFileSize,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("file too large: %d added lines, consider splitting it into smaller modules", len(lines)),
			File:     file,
		})
	}
	return out
}

func scanDangerousPatterns(rs *RuleSet, file string, line AddedLine) findings {
	var out findings
	for _, p := range rs.dangerous {
		if p.Matcher.Match(line.Content) {
			out.issue(Issue{
				Kind:     IssueDangerousPattern,
				Severity: SeverityCritical,
				Message:  "dangerous code pattern detected: " + p.Name,
				File:     file,
				Line:     line.Number,
				Snippet:  strings.TrimSpace(line.Content),
			})
		}
	}
	return out
}

func scanLineLength(rs *RuleSet, file string, line AddedLine) findings {
	var out findings
	n := utf8.RuneCountInString(line.Content)
	if n > rs.MaxLineLength() {
		out.issue(Issue{
			Kind:     IssueLineLength,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("line too long: %d characters, keep lines within %d", n, rs.MaxLineLength()),
			File:     file,
			Line:     line.Number,
		})
	}
	return out
}

func scanTodo(file string, line AddedLine) findings {
	var out findings
	if todoRe.MatchString(strings.TrimSpace(line.Content)) {
		out.suggest(Suggestion{
			Kind:    SuggestionTodo,
			Message: "TODO/FIXME marker found, resolve it before merging",
			File:    file,
			Line:    line.Number,
		})
	}
	return out
}

func scanEmptyCatch(file string, line AddedLine) findings {
	var out findings
	if emptyCatchRe.MatchString(strings.TrimSpace(line.Content)) {
		out.issue(Issue{
			Kind:     IssueEmptyCatch,
			Severity: SeverityWarning,
			Message:  "empty catch block, at least log the error",
			File:     file,
			Line:     line.Number,
		})
	}
	return out
}

func scanNaming(file string, line AddedLine) findings {
	var out findings
	m := declRe.FindStringSubmatch(strings.TrimSpace(line.Content))
	if m == nil {
		return out
	}
	name := m[1]
	if len(name) == 1 && !loopCounters[name] {
		out.suggest(Suggestion{
			Kind:    SuggestionNaming,
			Message: fmt.Sprintf("variable name %q is too short, use a more descriptive name", name),
			File:    file,
			Line:    line.Number,
		})
	}
	return out
}

// scanFunctionIntroduction flags new functions. It detects presence only;
// length and complexity are not measured.
func scanFunctionIntroduction(file string, line AddedLine) findings {
	var out findings
	trimmed := strings.TrimSpace(line.Content)
	if namedFuncRe.MatchString(trimmed) || arrowBlockRe.MatchString(trimmed) {
		out.suggest(Suggestion{
			Kind:    SuggestionFunctionComplexity,
			Message: "new function added, keep it focused and reasonably short",
			File:    file,
			Line:    line.Number,
		})
	}
	return out
}

func scanRequiredPatterns(rs *RuleSet, file string, lines []AddedLine) findings {
	var out findings
	patterns := rs.required[FileExtension(file)]
	if len(patterns) == 0 || len(lines) == 0 {
		return out
	}
	content := joinContent(lines)
	for _, p := range patterns {
		if !p.Matcher.Match(content) {
			out.suggest(Suggestion{
				Kind:    SuggestionRequiredPattern,
				Message: "consider adding: " + p.Name,
				File:    file,
				Line:    1,
			})
		}
	}
	return out
}
