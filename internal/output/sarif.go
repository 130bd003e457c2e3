package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/mrscan/internal/review"
)

// SARIFWriter outputs findings in SARIF v2.1.0 format.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, report *Report) error {
	sarif := buildSARIF(report)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// sarifBuilder registers rules in first-seen order.
type sarifBuilder struct {
	rules   []sarifRule
	seen    map[string]bool
	results []sarifResult
}

func (b *sarifBuilder) add(kind, level, message, file string, line int) {
	id := "mrscan/" + kind
	if !b.seen[id] {
		b.seen[id] = true
		b.rules = append(b.rules, sarifRule{
			ID:               id,
			Name:             kind,
			ShortDescription: sarifMessage{Text: ruleDescriptions[kind]},
			DefaultConfig:    sarifDefaultConfig{Level: level},
		})
	}
	res := sarifResult{
		RuleID:  id,
		Level:   level,
		Message: sarifMessage{Text: message},
	}
	if file != "" {
		loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: file},
		}}
		if line > 0 {
			loc.PhysicalLocation.Region = &sarifRegion{StartLine: line}
		}
		res.Locations = []sarifLocation{loc}
	}
	b.results = append(b.results, res)
}

var ruleDescriptions = map[string]string{
	"dangerous_pattern":   "Dangerous code pattern",
	"file_size":           "File too large",
	"line_length":         "Line too long",
	"empty_catch":         "Empty catch block",
	"todo":                "Unresolved TODO marker",
	"naming":              "Non-descriptive variable name",
	"function_complexity": "New function introduced",
	"required_pattern":    "Required pattern missing",
}

func buildSARIF(report *Report) sarifLog {
	b := &sarifBuilder{seen: make(map[string]bool), results: []sarifResult{}}
	for _, is := range report.Result.Issues {
		b.add(is.Kind.String(), severityToLevel(is), is.Message, is.File, is.Line)
	}
	for _, sg := range report.Result.Suggestions {
		b.add(sg.Kind.String(), "note", sg.Message, sg.File, sg.Line)
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "mrscan",
						Version:        report.Version,
						InformationURI: "https://github.com/dshills/mrscan",
						Rules:          b.rules,
					},
				},
				Results: b.results,
			},
		},
	}
}

// severityToLevel maps issue severity to SARIF level.
func severityToLevel(is review.Issue) string {
	if is.Severity == review.SeverityCritical {
		return "error"
	}
	return "warning"
}
