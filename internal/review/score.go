package review

// Penalty weights applied per finding.
const (
	criticalPenalty   = 15
	warningPenalty    = 5
	suggestionPenalty = 1
)

// Score reduces summary counts to a score in [0, MaxScore].
func Score(s Summary) int {
	score := MaxScore -
		criticalPenalty*s.CriticalIssues -
		warningPenalty*s.Warnings -
		suggestionPenalty*s.SuggestionCount
	return min(max(score, 0), MaxScore)
}

// Penalty returns the points a single issue costs.
func (i Issue) Penalty() int {
	switch i.Severity {
	case SeverityCritical:
		return criticalPenalty
	case SeverityWarning:
		return warningPenalty
	default:
		return 0
	}
}
