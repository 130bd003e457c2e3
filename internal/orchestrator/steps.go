package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dshills/mrscan/internal/output"
	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scm"
)

// State is a pipeline stage. A run only moves forward.
type State int

const (
	StateFetching State = iota
	StateAnalyzing
	StateReporting
	StatePosting
	StateApproving
	StateAnnotatingInline
	StateDone
)

var stateNames = [...]string{"fetching", "analyzing", "reporting", "posting", "approving", "annotating_inline", "done"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Step names.
const (
	StepFetch          = "fetch"
	StepAnalyze        = "analyze"
	StepReport         = "report"
	StepPostSummary    = "post-summary"
	StepApprove        = "approve"
	StepAnnotateInline = "annotate-inline"
)

// StepFailure records a non-fatal step error.
type StepFailure struct {
	Step string
	Err  error
}

// Outcome describes what a run did.
type Outcome struct {
	RunID          string
	ProjectID      string
	MergeRequestID int
	// State is the last state entered; StateDone on completion.
	State         State
	MergeRequest  scm.MergeRequest
	Changes       []review.ChangeEntry
	Result        review.AnalysisResult
	Report        string
	SummaryPosted bool
	Approved      bool
	InlinePosted  int
	InlineSkipped int
	Failures      []StepFailure
}

// run is the mutable state threaded through one execution.
type run struct {
	*Outcome
	log zerolog.Logger
}

func (r *run) fail(stepName string, err error) {
	r.Failures = append(r.Failures, StepFailure{Step: stepName, Err: err})
	ev := r.log.Error().Err(err).Str("step", stepName)
	var re *scm.RemoteError
	if errors.As(err, &re) && re.StatusCode != 0 {
		ev = ev.Int("status", re.StatusCode)
	}
	ev.Msg("step failed, continuing")
}

type step struct {
	name  string
	state State
	fatal bool
	fn    func(ctx context.Context, r *run) error
}

func (o *Orchestrator) pipeline() []step {
	return []step{
		{StepFetch, StateFetching, true, o.fetch},
		{StepAnalyze, StateAnalyzing, true, o.analyze},
		{StepReport, StateReporting, true, o.report},
		{StepPostSummary, StatePosting, false, o.postSummary},
		{StepApprove, StateApproving, false, o.approve},
		{StepAnnotateInline, StateAnnotatingInline, false, o.annotateInline},
	}
}

func (o *Orchestrator) fetch(ctx context.Context, r *run) error {
	mr, err := o.client.FetchMergeRequest(ctx, r.ProjectID, r.MergeRequestID)
	if err != nil {
		return &scm.FetchError{ProjectID: r.ProjectID, MRID: r.MergeRequestID, Err: err}
	}
	changes, err := o.client.FetchChangeSet(ctx, r.ProjectID, r.MergeRequestID)
	if err != nil {
		return &scm.FetchError{ProjectID: r.ProjectID, MRID: r.MergeRequestID, Err: err}
	}
	r.MergeRequest = mr
	r.Changes = changes
	r.log.Debug().Int("files", len(changes)).Msg("change-set fetched")
	return nil
}

func (o *Orchestrator) analyze(_ context.Context, r *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("analysis panicked: %v", p)
		}
	}()
	r.Result = o.engine.Evaluate(r.Changes)
	r.log.Info().
		Int("score", r.Result.Score).
		Int("critical", r.Result.Summary.CriticalIssues).
		Int("warnings", r.Result.Summary.Warnings).
		Int("suggestions", r.Result.Summary.SuggestionCount).
		Msg("analysis complete")
	return nil
}

func (o *Orchestrator) report(_ context.Context, r *run) error {
	r.Report = output.RenderReport(r.Result, r.MergeRequest, o.now())
	return nil
}

func (o *Orchestrator) postSummary(ctx context.Context, r *run) error {
	if err := o.client.PostSummaryComment(ctx, r.ProjectID, r.MergeRequestID, r.Report); err != nil {
		return err
	}
	r.SummaryPosted = true
	return nil
}

func (o *Orchestrator) approve(ctx context.Context, r *run) error {
	if !o.ShouldApprove(r.Result.Score) {
		r.log.Debug().
			Int("score", r.Result.Score).
			Int("threshold", o.settings.AutoApproveThreshold).
			Msg("not approving")
		return nil
	}
	if err := o.client.Approve(ctx, r.ProjectID, r.MergeRequestID); err != nil {
		return err
	}
	r.Approved = true
	r.log.Info().Int("score", r.Result.Score).Msg("merge request approved")
	return nil
}

// annotateInline posts each selected comment in order. A failed comment is
// recorded and the next one is still attempted.
func (o *Orchestrator) annotateInline(ctx context.Context, r *run) error {
	comments, skipped := SelectInline(r.Result, r.Changes, o.settings.MaxInlineComments)
	r.InlineSkipped = skipped
	for _, c := range comments {
		if err := o.client.PostInlineComment(ctx, r.ProjectID, r.MergeRequestID, c); err != nil {
			r.fail(StepAnnotateInline, fmt.Errorf("%s:%d: %w", c.NewPath, c.Line, err))
			continue
		}
		r.InlinePosted++
		r.log.Debug().Str("file", c.NewPath).Int("line", c.Line).Msg("inline comment posted")
	}
	return nil
}

// SelectInline picks the inline comments for a result: critical issues with
// a file and line, at most limit of them in discovery order, each matched to
// the change entry with the same new path. skipped counts selected issues
// with no matching entry.
func SelectInline(result review.AnalysisResult, changes []review.ChangeEntry, limit int) (comments []scm.InlineComment, skipped int) {
	var selected []review.Issue
	for _, is := range result.Issues {
		if len(selected) >= limit {
			break
		}
		if is.Severity == review.SeverityCritical && is.HasLocation() {
			selected = append(selected, is)
		}
	}

	for _, is := range selected {
		entry, ok := findEntry(changes, is.File)
		if !ok {
			skipped++
			continue
		}
		comments = append(comments, scm.InlineComment{
			Body:     output.InlineCommentBody(is),
			OldPath:  entry.OldPath,
			NewPath:  entry.NewPath,
			Line:     is.Line,
			DiffRefs: entry.DiffRefs,
		})
	}
	return comments, skipped
}

func findEntry(changes []review.ChangeEntry, path string) (review.ChangeEntry, bool) {
	for _, c := range changes {
		if c.NewPath == path {
			return c, true
		}
	}
	return review.ChangeEntry{}, false
}
