package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scm"
)

// Report bundles an analysis result with the context it was produced in.
type Report struct {
	Result review.AnalysisResult
	// MergeRequest is zero for local analyses.
	MergeRequest scm.MergeRequest
	// Source describes the input, e.g. "gitlab", "staged" or a git range.
	Source      string
	Version     string
	GeneratedAt time.Time
}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *Report) error
}

// Formats lists the supported output formats.
var Formats = []string{"text", "json", "markdown", "sarif"}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to the specified output (file path or stdout).
func WriteReport(report *Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, report)
}

// Rating bands a score.
type Rating int

const (
	RatingPoor Rating = iota
	RatingFair
	RatingGood
)

// Rate returns the band for a score: 90 and above is good, 70 to 89 fair,
// anything lower poor.
func Rate(score int) Rating {
	switch {
	case score >= 90:
		return RatingGood
	case score >= 70:
		return RatingFair
	default:
		return RatingPoor
	}
}

func (r Rating) String() string {
	switch r {
	case RatingGood:
		return "good"
	case RatingFair:
		return "fair"
	default:
		return "poor"
	}
}
