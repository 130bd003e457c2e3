package review

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// plainEngine uses the default rules without required patterns so each
// finding in a scenario is the only one produced. TestEvaluate_Scenarios
// uses it for the documented examples, e.g. console.log in a.js scoring
// 85; under the full defaults a.js also misses "use strict" and scores 84.
func plainEngine(t *testing.T) *Engine {
	t.Helper()
	spec := DefaultRuleSpec()
	spec.RequiredPatterns = nil
	rs, err := NewRuleSet(spec)
	if err != nil {
		t.Fatalf("NewRuleSet error: %v", err)
	}
	return NewEngine(rs)
}

func diffOf(lines ...string) string {
	var b strings.Builder
	b.WriteString("@@ -0,0 +1 @@\n")
	for _, l := range lines {
		b.WriteString("+" + l + "\n")
	}
	return b.String()
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestEvaluate_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		changes []ChangeEntry
		score   int
		crit    int
		warn    int
		sugg    int
	}{
		{
			name:    "no changes",
			changes: nil,
			score:   100,
		},
		{
			name:    "console.log",
			changes: []ChangeEntry{{NewPath: "a.js", Diff: diffOf(`console.log("x");`)}},
			score:   85,
			crit:    1,
		},
		{
			name:    "oversized file",
			changes: []ChangeEntry{{NewPath: "b.go", Diff: diffOf(repeat("return nil", 1001)...)}},
			score:   95,
			warn:    1,
		},
		{
			name:    "seven todos",
			changes: []ChangeEntry{{NewPath: "c.py", Diff: diffOf(repeat("# TODO: tidy", 7)...)}},
			score:   93,
			sugg:    7,
		},
		{
			name:    "skipped extension",
			changes: []ChangeEntry{{NewPath: "README.md", Diff: diffOf("console.log(1)", "debugger")}},
			score:   100,
		},
		{
			name:    "clamped at zero",
			changes: []ChangeEntry{{NewPath: "d.js", Diff: diffOf(repeat("eval(x); debugger", 4)...)}},
			score:   0,
			crit:    8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := plainEngine(t).Evaluate(tt.changes)
			if r.Score != tt.score {
				t.Errorf("Score = %d, want %d", r.Score, tt.score)
			}
			if r.MaxScore != 100 {
				t.Errorf("MaxScore = %d, want 100", r.MaxScore)
			}
			s := r.Summary
			if s.CriticalIssues != tt.crit || s.Warnings != tt.warn || s.SuggestionCount != tt.sugg {
				t.Errorf("counts = %d/%d/%d, want %d/%d/%d",
					s.CriticalIssues, s.Warnings, s.SuggestionCount, tt.crit, tt.warn, tt.sugg)
			}
		})
	}
}

func TestEvaluate_DefaultRulesRequireUseStrict(t *testing.T) {
	r := NewEngine(nil).Evaluate([]ChangeEntry{{NewPath: "a.js", Diff: diffOf(`console.log("x");`)}})
	if r.Score != 84 {
		t.Errorf("Score = %d, want 84 (critical plus missing use strict)", r.Score)
	}
	if len(r.Suggestions) != 1 || r.Suggestions[0].Kind != SuggestionRequiredPattern {
		t.Errorf("Suggestions = %+v", r.Suggestions)
	}
}

func TestEvaluate_SummaryConsistent(t *testing.T) {
	changes := []ChangeEntry{
		{NewPath: "a.js", Diff: "--- a/a.js\n+++ b/a.js\n-old\n-older\n+const x = 1\n+} catch (e) {}\n"},
		{NewPath: "b.ts", Diff: diffOf("function run() {", strings.Repeat("y", 130), "// FIXME")},
		{NewPath: "notes.txt", Diff: diffOf("debugger", "-gone")},
	}
	r := NewEngine(nil).Evaluate(changes)

	if r.Summary.FilesAnalyzed != 2 {
		t.Errorf("FilesAnalyzed = %d, want 2", r.Summary.FilesAnalyzed)
	}
	if r.Summary.LinesAdded != 5 {
		t.Errorf("LinesAdded = %d, want 5", r.Summary.LinesAdded)
	}
	if r.Summary.LinesRemoved != 2 {
		t.Errorf("LinesRemoved = %d, want 2", r.Summary.LinesRemoved)
	}

	derived := ComputeSummary(r.Issues, r.Suggestions)
	if derived.CriticalIssues != r.Summary.CriticalIssues ||
		derived.Warnings != r.Summary.Warnings ||
		derived.SuggestionCount != r.Summary.SuggestionCount {
		t.Errorf("summary %+v disagrees with findings %+v", r.Summary, derived)
	}
	want := max(0, 100-15*r.Summary.CriticalIssues-5*r.Summary.Warnings-r.Summary.SuggestionCount)
	if r.Score != want {
		t.Errorf("Score = %d, want %d", r.Score, want)
	}
	for _, is := range r.Issues {
		if is.File == "notes.txt" {
			t.Errorf("issue reported for skipped file: %+v", is)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	var changes []ChangeEntry
	for i := 0; i < 20; i++ {
		changes = append(changes, ChangeEntry{
			NewPath: fmt.Sprintf("pkg/f%d.js", i),
			Diff:    diffOf("let v = 1", "console.log(v)", "// TODO", "function f() {"),
		})
	}
	e := NewEngine(nil)
	first := e.Evaluate(changes)
	for i := 0; i < 5; i++ {
		if got := e.Evaluate(changes); !reflect.DeepEqual(got, first) {
			t.Fatal("Evaluate returned different results for identical input")
		}
	}
}

func TestEvaluate_EmptySlicesNotNil(t *testing.T) {
	r := NewEngine(nil).Evaluate(nil)
	if r.Issues == nil || r.Suggestions == nil {
		t.Error("Issues and Suggestions should be empty, not nil")
	}
}

func TestEvaluate_UsesNewPath(t *testing.T) {
	changes := []ChangeEntry{{OldPath: "old.md", NewPath: "new.js", Diff: diffOf("debugger")}}
	r := plainEngine(t).Evaluate(changes)
	if len(r.Issues) != 1 || r.Issues[0].File != "new.js" {
		t.Errorf("Issues = %+v, want one issue on new.js", r.Issues)
	}
}

func TestScore_Bounds(t *testing.T) {
	tests := []struct {
		s    Summary
		want int
	}{
		{Summary{}, 100},
		{Summary{CriticalIssues: 1, Warnings: 1, SuggestionCount: 1}, 79},
		{Summary{CriticalIssues: 7}, 0},
		{Summary{SuggestionCount: 250}, 0},
	}
	for _, tt := range tests {
		if got := Score(tt.s); got != tt.want {
			t.Errorf("Score(%+v) = %d, want %d", tt.s, got, tt.want)
		}
	}
}
