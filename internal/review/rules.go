package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxLineLength is the fixed line length limit.
const MaxLineLength = 120

// ConfigError reports an invalid rule set or configuration. It is fatal at
// startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PatternSpec is the serializable form of a text pattern.
type PatternSpec struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Pattern string `json:"pattern" yaml:"pattern"`
	// Literal matches Pattern as a plain substring instead of a regexp.
	Literal bool `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// RuleSpec is the serializable rule configuration loaded from config or a
// rules file.
type RuleSpec struct {
	MaxFileSize       int                      `json:"maxFileSize" yaml:"maxFileSize"`
	MaxMethodLength   int                      `json:"maxMethodLength" yaml:"maxMethodLength"`
	MaxComplexity     int                      `json:"maxComplexity" yaml:"maxComplexity"`
	AllowedExtensions []string                 `json:"allowedExtensions" yaml:"allowedExtensions"`
	DangerousPatterns []PatternSpec            `json:"dangerousPatterns" yaml:"dangerousPatterns"`
	RequiredPatterns  map[string][]PatternSpec `json:"requiredPatterns,omitempty" yaml:"requiredPatterns,omitempty"`
}

// DefaultRuleSpec returns the built-in rules.
func DefaultRuleSpec() RuleSpec {
	return RuleSpec{
		MaxFileSize:       1000,
		MaxMethodLength:   50,
		MaxComplexity:     10,
		AllowedExtensions: []string{".js", ".ts", ".jsx", ".tsx", ".vue", ".py", ".java", ".go", ".php"},
		DangerousPatterns: []PatternSpec{
			{Pattern: `console\.log`},
			{Pattern: `debugger`},
			{Pattern: `eval\(`},
			{Pattern: `document\.write`},
			{Pattern: `innerHTML\s*=`},
		},
		RequiredPatterns: map[string][]PatternSpec{
			".js": {{Name: "use strict", Pattern: `(?m)^['"]use strict['"];?`}},
		},
	}
}

// LoadRules reads a YAML or JSON rules file. The format is chosen by
// extension; anything other than .yaml/.yml is parsed as JSON.
func LoadRules(file string) (RuleSpec, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return RuleSpec{}, fmt.Errorf("reading rules file: %w", err)
	}
	var spec RuleSpec
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &spec)
	default:
		err = json.Unmarshal(data, &spec)
	}
	if err != nil {
		return RuleSpec{}, &ConfigError{Field: "rulesFile", Err: fmt.Errorf("parsing %s: %w", file, err)}
	}
	return spec, nil
}

// Matcher tests a piece of text.
type Matcher interface {
	Match(text string) bool
	String() string
}

type regexMatcher struct{ re *regexp.Regexp }

func (m regexMatcher) Match(text string) bool { return m.re.MatchString(text) }
func (m regexMatcher) String() string         { return m.re.String() }

type literalMatcher struct{ s string }

func (m literalMatcher) Match(text string) bool { return strings.Contains(text, m.s) }
func (m literalMatcher) String() string         { return m.s }

// NamedPattern pairs a display name with its matcher.
type NamedPattern struct {
	Name    string
	Matcher Matcher
}

// RuleSet is the compiled, read-only rule configuration.
type RuleSet struct {
	maxFileSize     int
	maxMethodLength int
	maxComplexity   int
	extensions      map[string]bool
	dangerous       []NamedPattern
	required        map[string][]NamedPattern
}

// NewRuleSet validates and compiles a RuleSpec.
func NewRuleSet(spec RuleSpec) (*RuleSet, error) {
	thresholds := []struct {
		field string
		value int
	}{
		{"maxFileSize", spec.MaxFileSize},
		{"maxMethodLength", spec.MaxMethodLength},
		{"maxComplexity", spec.MaxComplexity},
	}
	for _, t := range thresholds {
		if t.value <= 0 {
			return nil, &ConfigError{Field: t.field, Err: fmt.Errorf("must be positive, got %d", t.value)}
		}
	}

	rs := &RuleSet{
		maxFileSize:     spec.MaxFileSize,
		maxMethodLength: spec.MaxMethodLength,
		maxComplexity:   spec.MaxComplexity,
		extensions:      make(map[string]bool, len(spec.AllowedExtensions)),
		required:        make(map[string][]NamedPattern, len(spec.RequiredPatterns)),
	}

	for _, ext := range spec.AllowedExtensions {
		if !validExtension(ext) {
			return nil, &ConfigError{Field: "allowedExtensions", Err: fmt.Errorf("malformed extension %q", ext)}
		}
		rs.extensions[ext] = true
	}

	for i, p := range spec.DangerousPatterns {
		np, err := compilePattern(p)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("dangerousPatterns[%d]", i), Err: err}
		}
		rs.dangerous = append(rs.dangerous, np)
	}

	for ext, patterns := range spec.RequiredPatterns {
		if !validExtension(ext) {
			return nil, &ConfigError{Field: "requiredPatterns", Err: fmt.Errorf("malformed extension %q", ext)}
		}
		for i, p := range patterns {
			np, err := compilePattern(p)
			if err != nil {
				return nil, &ConfigError{Field: fmt.Sprintf("requiredPatterns[%s][%d]", ext, i), Err: err}
			}
			rs.required[ext] = append(rs.required[ext], np)
		}
	}

	return rs, nil
}

// DefaultRuleSet compiles DefaultRuleSpec.
func DefaultRuleSet() *RuleSet {
	rs, err := NewRuleSet(DefaultRuleSpec())
	if err != nil {
		panic(err)
	}
	return rs
}

func validExtension(ext string) bool {
	return len(ext) > 1 && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext[1:], "./")
}

func compilePattern(p PatternSpec) (NamedPattern, error) {
	if p.Pattern == "" {
		return NamedPattern{}, fmt.Errorf("empty pattern")
	}
	var m Matcher
	if p.Literal {
		m = literalMatcher{s: p.Pattern}
	} else {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return NamedPattern{}, fmt.Errorf("compiling %q: %w", p.Pattern, err)
		}
		m = regexMatcher{re: re}
	}
	name := p.Name
	if name == "" {
		name = m.String()
	}
	return NamedPattern{Name: name, Matcher: m}, nil
}

func (rs *RuleSet) MaxFileSize() int     { return rs.maxFileSize }
func (rs *RuleSet) MaxLineLength() int   { return MaxLineLength }
func (rs *RuleSet) MaxMethodLength() int { return rs.maxMethodLength }

// MaxComplexity is accepted for compatibility; no scanner measures
// complexity.
func (rs *RuleSet) MaxComplexity() int { return rs.maxComplexity }

// AllowedExtensions returns the allowed extensions in sorted order.
func (rs *RuleSet) AllowedExtensions() []string {
	exts := make([]string, 0, len(rs.extensions))
	for ext := range rs.extensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// DangerousPatterns returns a copy of the dangerous patterns in configured
// order.
func (rs *RuleSet) DangerousPatterns() []NamedPattern {
	return slices.Clone(rs.dangerous)
}

// RequiredPatterns returns a copy of the patterns registered for ext.
func (rs *RuleSet) RequiredPatterns(ext string) []NamedPattern {
	return slices.Clone(rs.required[ext])
}

// ShouldAnalyze reports whether a file's extension is allowed.
func (rs *RuleSet) ShouldAnalyze(file string) bool {
	if file == "" {
		return false
	}
	ext := FileExtension(file)
	return ext != "" && rs.extensions[ext]
}

// FileExtension returns the extension of the last path element, including
// the dot, or "" if there is none.
func FileExtension(file string) string {
	return path.Ext(file)
}
