package review

import "fmt"

// MaxScore is the ceiling of every analysis score.
const MaxScore = 100

// Severity represents the severity level of an issue.
type Severity int

const (
	SeverityWarning Severity = iota + 1
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText encodes the severity as its wire name.
func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case SeverityCritical, SeverityWarning:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
}

// UnmarshalText decodes a severity wire name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "critical":
		*s = SeverityCritical
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// IssueKind identifies the scanner that produced an Issue.
type IssueKind int

const (
	IssueDangerousPattern IssueKind = iota + 1
	IssueFileSize
	IssueLineLength
	IssueEmptyCatch
)

var issueKindNames = map[IssueKind]string{
	IssueDangerousPattern: "dangerous_pattern",
	IssueFileSize:         "file_size",
	IssueLineLength:       "line_length",
	IssueEmptyCatch:       "empty_catch",
}

func (k IssueKind) String() string {
	if name, ok := issueKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("issue(%d)", int(k))
}

// MarshalText encodes the kind as its wire name.
func (k IssueKind) MarshalText() ([]byte, error) {
	name, ok := issueKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown issue kind %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText decodes an issue kind wire name.
func (k *IssueKind) UnmarshalText(b []byte) error {
	for kind, name := range issueKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown issue kind %q", string(b))
}

// SuggestionKind identifies the scanner that produced a Suggestion.
type SuggestionKind int

const (
	SuggestionTodo SuggestionKind = iota + 1
	SuggestionNaming
	SuggestionFunctionComplexity
	SuggestionRequiredPattern
)

var suggestionKindNames = map[SuggestionKind]string{
	SuggestionTodo:               "todo",
	SuggestionNaming:             "naming",
	SuggestionFunctionComplexity: "function_complexity",
	SuggestionRequiredPattern:    "required_pattern",
}

func (k SuggestionKind) String() string {
	if name, ok := suggestionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("suggestion(%d)", int(k))
}

// MarshalText encodes the kind as its wire name.
func (k SuggestionKind) MarshalText() ([]byte, error) {
	name, ok := suggestionKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown suggestion kind %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a suggestion kind wire name.
func (k *SuggestionKind) UnmarshalText(b []byte) error {
	for kind, name := range suggestionKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown suggestion kind %q", string(b))
}

// Issue is a finding that carries a severity and affects the score heavily.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	File     string    `json:"file,omitempty"`
	Line     int       `json:"line,omitempty"`
	Snippet  string    `json:"snippet,omitempty"`
}

// HasLocation reports whether the issue is anchored at a file and line.
func (i Issue) HasLocation() bool {
	return i.File != "" && i.Line > 0
}

// Suggestion is a non-blocking finding worth one point.
type Suggestion struct {
	Kind    SuggestionKind `json:"kind"`
	Message string         `json:"message"`
	File    string         `json:"file,omitempty"`
	Line    int            `json:"line,omitempty"`
}

// DiffRefs are opaque revision identifiers passed through to inline comments.
type DiffRefs struct {
	BaseSHA  string `json:"baseSha"`
	StartSHA string `json:"startSha"`
	HeadSHA  string `json:"headSha"`
}

// ChangeEntry is one file's diff within a change-set.
type ChangeEntry struct {
	OldPath  string   `json:"oldPath,omitempty"`
	NewPath  string   `json:"newPath,omitempty"`
	Diff     string   `json:"diff"`
	DiffRefs DiffRefs `json:"diffRefs"`
}

// AddedLine is a line introduced by a diff.
type AddedLine struct {
	Content string
	// Number is the ordinal among added lines in the file, not the
	// position in the resulting file.
	Number int
}

// Summary holds derived counts for an analysis.
type Summary struct {
	FilesAnalyzed   int `json:"filesAnalyzed"`
	LinesAdded      int `json:"linesAdded"`
	LinesRemoved    int `json:"linesRemoved"`
	CriticalIssues  int `json:"criticalIssues"`
	Warnings        int `json:"warnings"`
	SuggestionCount int `json:"suggestions"`
}

// AnalysisResult is the outcome of evaluating a change-set. Construct it
// with Engine.Evaluate; the summary counts are derived from the findings.
type AnalysisResult struct {
	Score       int          `json:"score"`
	MaxScore    int          `json:"maxScore"`
	Issues      []Issue      `json:"issues"`
	Suggestions []Suggestion `json:"suggestions"`
	Summary     Summary      `json:"summary"`
}

// CriticalIssues returns the critical issues in discovery order.
func (r AnalysisResult) CriticalIssues() []Issue {
	return r.issuesWith(SeverityCritical)
}

// WarningIssues returns the warning issues in discovery order.
func (r AnalysisResult) WarningIssues() []Issue {
	return r.issuesWith(SeverityWarning)
}

func (r AnalysisResult) issuesWith(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// ComputeSummary derives the severity and suggestion counts from findings.
// File and line counts are left to the caller.
func ComputeSummary(issues []Issue, suggestions []Suggestion) Summary {
	var s Summary
	for _, i := range issues {
		switch i.Severity {
		case SeverityCritical:
			s.CriticalIssues++
		case SeverityWarning:
			s.Warnings++
		}
	}
	s.SuggestionCount = len(suggestions)
	return s
}
