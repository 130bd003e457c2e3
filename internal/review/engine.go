package review

// Engine evaluates change-sets against a RuleSet. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	rules *RuleSet
}

// NewEngine returns an Engine bound to rules. A nil RuleSet selects the
// defaults.
func NewEngine(rules *RuleSet) *Engine {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	return &Engine{rules: rules}
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() *RuleSet { return e.rules }

// Evaluate scans every analyzable file in the change-set and scores the
// result. Files are visited in input order, so identical input always
// yields an identical result.
func (e *Engine) Evaluate(changes []ChangeEntry) AnalysisResult {
	issues := []Issue{}
	suggestions := []Suggestion{}
	var files, added, removed int

	for _, change := range changes {
		if !e.rules.ShouldAnalyze(change.NewPath) {
			continue
		}
		lines := AddedLines(change.Diff)
		found := scanFile(e.rules, change.NewPath, lines)
		issues = append(issues, found.issues...)
		suggestions = append(suggestions, found.suggestions...)

		files++
		added += len(lines)
		removed += RemovedLineCount(change.Diff)
	}

	summary := ComputeSummary(issues, suggestions)
	summary.FilesAnalyzed = files
	summary.LinesAdded = added
	summary.LinesRemoved = removed

	return AnalysisResult{
		Score:       Score(summary),
		MaxScore:    MaxScore,
		Issues:      issues,
		Suggestions: suggestions,
		Summary:     summary,
	}
}
