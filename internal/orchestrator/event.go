package orchestrator

import (
	"fmt"
	"strings"
)

// Action is a normalized merge-request event action.
type Action string

const (
	ActionOpened   Action = "opened"
	ActionReopened Action = "reopened"
	ActionUpdated  Action = "updated"
)

// Reviewable reports whether the action triggers a review.
func (a Action) Reviewable() bool {
	switch a {
	case ActionOpened, ActionReopened, ActionUpdated:
		return true
	default:
		return false
	}
}

// Event is a merge-request event from any transport.
type Event struct {
	Action         Action
	Draft          bool
	ProjectID      string
	MergeRequestID int
}

// Key identifies the merge request the event belongs to.
func (e Event) Key() string {
	return fmt.Sprintf("%s!%d", e.ProjectID, e.MergeRequestID)
}

// Validate checks that the event is well formed. The action value itself
// is not checked; unknown actions are ignored by gating.
func (e Event) Validate() error {
	switch {
	case strings.TrimSpace(e.ProjectID) == "":
		return &ValidationError{Field: "projectId", Reason: "is required"}
	case e.MergeRequestID <= 0:
		return &ValidationError{Field: "mergeRequestId", Reason: fmt.Sprintf("must be positive, got %d", e.MergeRequestID)}
	case e.Action == "":
		return &ValidationError{Field: "action", Reason: "is required"}
	}
	return nil
}

// ValidationError reports a malformed or unrecognized incoming event. The
// event is dropped.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}
