// Package review contains the diff analysis and scoring engine.
//
// It extracts added lines from unified diffs, runs a fixed family of
// regex-based scanners over them (dangerous patterns, line length, TODO
// markers, empty catch blocks, short variable names, new functions, and
// per-extension required patterns), and reduces the findings to a score
// between 0 and 100.
//
// Rules (rules.go) are loaded once into an immutable [RuleSet]; pattern
// families are data, matched through the [Matcher] interface. Evaluation is
// a pure function of the change-set and the rule set: no clocks, no
// randomness, no shared mutable state.
package review
