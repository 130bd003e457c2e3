package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scheduler"
	"github.com/dshills/mrscan/internal/scm"
)

// Defaults for Settings.
const (
	DefaultAutoApproveThreshold = 90
	DefaultMaxInlineComments    = 5
	DefaultReviewDelay          = 5 * time.Second
)

// Settings is the review policy. It is read-only after New.
type Settings struct {
	Enabled              bool
	AutoApproveThreshold int
	MaxInlineComments    int
	ReviewDelay          time.Duration
}

// DefaultSettings returns the default policy with review disabled.
func DefaultSettings() Settings {
	return Settings{
		AutoApproveThreshold: DefaultAutoApproveThreshold,
		MaxInlineComments:    DefaultMaxInlineComments,
		ReviewDelay:          DefaultReviewDelay,
	}
}

// Dispatcher schedules delayed work. *scheduler.Scheduler implements it.
type Dispatcher interface {
	Schedule(key string, delay time.Duration, fn func(ctx context.Context)) (*scheduler.Task, error)
}

// Options configures an Orchestrator.
type Options struct {
	Engine    *review.Engine
	Client    scm.Client
	Scheduler Dispatcher
	Settings  Settings
	Logger    zerolog.Logger
	// Now stamps the report. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs reviews against one source-control collaborator.
type Orchestrator struct {
	engine   *review.Engine
	client   scm.Client
	sched    Dispatcher
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an Orchestrator. A nil Engine uses the default rules.
func New(opts Options) (*Orchestrator, error) {
	if opts.Client == nil {
		return nil, errors.New("orchestrator: client is required")
	}
	if opts.Engine == nil {
		opts.Engine = review.NewEngine(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		engine:   opts.Engine,
		client:   opts.Client,
		sched:    opts.Scheduler,
		settings: opts.Settings,
		log:      opts.Logger.With().Str("component", "orchestrator").Logger(),
		now:      opts.Now,
	}, nil
}

// Settings returns the review policy.
func (o *Orchestrator) Settings() Settings { return o.settings }

// Evaluate analyzes a change-set without any collaborator calls.
func (o *Orchestrator) Evaluate(changes []review.ChangeEntry) review.AnalysisResult {
	return o.engine.Evaluate(changes)
}

// ShouldApprove reports whether a score earns an automatic approval.
func (o *Orchestrator) ShouldApprove(score int) bool {
	return o.settings.Enabled && score >= o.settings.AutoApproveThreshold
}

// Gate decides whether an event triggers a review. The reason explains a
// rejection.
func (o *Orchestrator) Gate(ev Event) (ok bool, reason string) {
	switch {
	case !o.settings.Enabled:
		return false, "review disabled"
	case !ev.Action.Reviewable():
		return false, fmt.Sprintf("action %q does not trigger review", ev.Action)
	case ev.Draft:
		return false, "draft merge request"
	}
	return true, ""
}

// OnMergeRequestEvent validates and gates an event and, when accepted,
// schedules a review after the configured delay. It never blocks on the
// review itself. The scheduled run does not inherit ctx.
func (o *Orchestrator) OnMergeRequestEvent(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		o.log.Warn().Err(err).Msg("dropping event")
		return err
	}
	log := o.log.With().Str("project", ev.ProjectID).Int("mr", ev.MergeRequestID).Str("action", string(ev.Action)).Logger()

	if ok, reason := o.Gate(ev); !ok {
		log.Info().Str("reason", reason).Msg("skipping merge request event")
		return nil
	}
	if o.sched == nil {
		return errors.New("orchestrator: no scheduler configured")
	}

	_, err := o.sched.Schedule(ev.Key(), o.settings.ReviewDelay, func(runCtx context.Context) {
		if _, err := o.Run(runCtx, ev.ProjectID, ev.MergeRequestID); err != nil {
			log.Error().Err(err).Msg("review run aborted")
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("scheduling review failed")
		return fmt.Errorf("scheduling review for %s: %w", ev.Key(), err)
	}
	log.Info().Dur("delay", o.settings.ReviewDelay).Msg("review scheduled")
	return nil
}

// Run executes the full pipeline for one merge request. The returned error
// is non-nil only when a fatal step failed; non-fatal failures are in
// Outcome.Failures.
func (o *Orchestrator) Run(ctx context.Context, projectID string, mrID int) (*Outcome, error) {
	return o.execute(ctx, projectID, mrID, o.pipeline())
}

// DryRun fetches, analyzes and renders the report without posting
// anything.
func (o *Orchestrator) DryRun(ctx context.Context, projectID string, mrID int) (*Outcome, error) {
	return o.execute(ctx, projectID, mrID, o.pipeline()[:3])
}

func (o *Orchestrator) execute(ctx context.Context, projectID string, mrID int, steps []step) (*Outcome, error) {
	out := &Outcome{RunID: uuid.NewString(), ProjectID: projectID, MergeRequestID: mrID}
	run := &run{
		Outcome: out,
		log: o.log.With().
			Str("run_id", out.RunID).
			Str("project", projectID).
			Int("mr", mrID).
			Logger(),
	}

	start := time.Now()
	run.log.Info().Msg("review started")
	for _, s := range steps {
		out.State = s.state
		err := s.fn(ctx, run)
		if err == nil {
			continue
		}
		if s.fatal {
			run.log.Error().Err(err).Str("step", s.name).Msg("review aborted")
			return out, err
		}
		run.fail(s.name, err)
	}
	out.State = StateDone
	run.log.Info().
		Int("score", out.Result.Score).
		Bool("approved", out.Approved).
		Int("inline_posted", out.InlinePosted).
		Int("failures", len(out.Failures)).
		Dur("elapsed", time.Since(start)).
		Msg("review finished")
	return out, nil
}
