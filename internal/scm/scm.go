package scm

import (
	"context"
	"fmt"

	"github.com/dshills/mrscan/internal/review"
)

// Client is the source-control collaborator. projectID is opaque to the
// orchestrator and mrID is the merge request's IID within the project.
type Client interface {
	FetchMergeRequest(ctx context.Context, projectID string, mrID int) (MergeRequest, error)
	FetchChangeSet(ctx context.Context, projectID string, mrID int) ([]review.ChangeEntry, error)
	PostSummaryComment(ctx context.Context, projectID string, mrID int, body string) error
	PostInlineComment(ctx context.Context, projectID string, mrID int, c InlineComment) error
	Approve(ctx context.Context, projectID string, mrID int) error
}

// MergeRequest is the metadata shown in the report header.
type MergeRequest struct {
	ProjectID    string          `json:"projectId"`
	IID          int             `json:"iid"`
	Title        string          `json:"title"`
	Author       string          `json:"author"`
	SourceBranch string          `json:"sourceBranch"`
	TargetBranch string          `json:"targetBranch"`
	Draft        bool            `json:"draft"`
	WebURL       string          `json:"webUrl,omitempty"`
	DiffRefs     review.DiffRefs `json:"diffRefs"`
}

// InlineComment is a comment anchored to a new-side line of a file.
type InlineComment struct {
	Body     string
	OldPath  string
	NewPath  string
	Line     int
	DiffRefs review.DiffRefs
}

// FetchError reports that merge-request metadata or its change-set could
// not be retrieved. It aborts a review run.
type FetchError struct {
	ProjectID string
	MRID      int
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching merge request %s!%d: %v", e.ProjectID, e.MRID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RemoteError reports a failed call to the collaborator. StatusCode is 0
// when no HTTP response was received.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
