package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dshills/mrscan/internal/review"
)

func TestJSONWriter(t *testing.T) {
	issues := []review.Issue{
		{Kind: review.IssueDangerousPattern, Severity: review.SeverityCritical, Message: "dangerous", File: "main.js", Line: 1},
	}
	report := &Report{Result: resultOf(issues, nil), MergeRequest: sampleMR}

	var buf bytes.Buffer
	w := &JSONWriter{}
	if err := w.Write(&buf, report); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var parsed review.AnalysisResult
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if parsed.Score != 85 {
		t.Errorf("Score = %d, want 85", parsed.Score)
	}
	if len(parsed.Issues) != 1 || parsed.Issues[0].Kind != review.IssueDangerousPattern {
		t.Errorf("Issues = %+v", parsed.Issues)
	}
	if parsed.Summary.CriticalIssues != 1 {
		t.Errorf("Summary.CriticalIssues = %d, want 1", parsed.Summary.CriticalIssues)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["suggestions"].([]any); !ok {
		t.Error("suggestions should encode as an array, not null")
	}
}
