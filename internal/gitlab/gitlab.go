package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	gitlabapi "gitlab.com/gitlab-org/api/client-go"

	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scm"
)

const (
	// DefaultURL is used when no instance URL is configured.
	DefaultURL = "https://gitlab.com"
	// DefaultTimeout bounds every API call.
	DefaultTimeout = 30 * time.Second

	diffsPerPage = 100
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to one GitLab instance.
type Client struct {
	api *gitlabapi.Client
	log zerolog.Logger

	// refs holds diff refs read by FetchMergeRequest until the matching
	// FetchChangeSet consumes them.
	mu   sync.Mutex
	refs map[string]review.DiffRefs
}

var _ scm.Client = (*Client)(nil)

// NewClient creates a GitLab client. The token is required.
func NewClient(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, errors.New("gitlab token is not set")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpCli := opts.HTTPClient
	if httpCli == nil {
		httpCli = &http.Client{Timeout: opts.Timeout}
	}

	api, err := gitlabapi.NewClient(opts.Token,
		gitlabapi.WithBaseURL(opts.BaseURL),
		gitlabapi.WithHTTPClient(httpCli),
		gitlabapi.WithoutRetries(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating gitlab client")
	}
	return &Client{
		api:  api,
		log:  opts.Logger.With().Str("component", "gitlab").Logger(),
		refs: make(map[string]review.DiffRefs),
	}, nil
}

// FetchMergeRequest returns the merge request's metadata.
func (c *Client) FetchMergeRequest(ctx context.Context, projectID string, mrID int) (scm.MergeRequest, error) {
	mr, resp, err := c.api.MergeRequests.GetMergeRequest(projectID, mrID, nil, gitlabapi.WithContext(ctx))
	if err != nil {
		return scm.MergeRequest{}, remoteError("get merge request", resp, err)
	}
	out := scm.MergeRequest{
		ProjectID:    projectID,
		IID:          mr.IID,
		Title:        mr.Title,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		Draft:        mr.Draft,
		WebURL:       mr.WebURL,
		DiffRefs:     diffRefs(mr),
	}
	if mr.Author != nil {
		out.Author = mr.Author.Username
	}
	c.mu.Lock()
	c.refs[refsKey(projectID, mrID)] = out.DiffRefs
	c.mu.Unlock()
	return out, nil
}

// FetchChangeSet lists every file diff of the merge request. Each entry
// carries the merge request's diff refs, taken from a preceding
// FetchMergeRequest when there was one.
func (c *Client) FetchChangeSet(ctx context.Context, projectID string, mrID int) ([]review.ChangeEntry, error) {
	refs, err := c.diffRefsFor(ctx, projectID, mrID)
	if err != nil {
		return nil, err
	}

	var changes []review.ChangeEntry
	opts := &gitlabapi.ListMergeRequestDiffsOptions{
		ListOptions: gitlabapi.ListOptions{PerPage: diffsPerPage},
	}
	for {
		diffs, resp, err := c.api.MergeRequests.ListMergeRequestDiffs(projectID, mrID, opts, gitlabapi.WithContext(ctx))
		if err != nil {
			return nil, remoteError("list merge request diffs", resp, err)
		}
		for _, d := range diffs {
			changes = append(changes, review.ChangeEntry{
				OldPath:  d.OldPath,
				NewPath:  d.NewPath,
				Diff:     d.Diff,
				DiffRefs: refs,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.log.Debug().
		Str("project", projectID).
		Int("mr", mrID).
		Int("files", len(changes)).
		Msg("fetched change-set")
	return changes, nil
}

// PostSummaryComment adds a note to the merge request.
func (c *Client) PostSummaryComment(ctx context.Context, projectID string, mrID int, body string) error {
	_, resp, err := c.api.Notes.CreateMergeRequestNote(projectID, mrID, &gitlabapi.CreateMergeRequestNoteOptions{
		Body: gitlabapi.Ptr(body),
	}, gitlabapi.WithContext(ctx))
	if err != nil {
		return remoteError("create merge request note", resp, err)
	}
	return nil
}

// PostInlineComment opens a discussion positioned on a new-side line.
func (c *Client) PostInlineComment(ctx context.Context, projectID string, mrID int, ic scm.InlineComment) error {
	oldPath := ic.OldPath
	if oldPath == "" {
		oldPath = ic.NewPath
	}
	_, resp, err := c.api.Discussions.CreateMergeRequestDiscussion(projectID, mrID, &gitlabapi.CreateMergeRequestDiscussionOptions{
		Body: gitlabapi.Ptr(ic.Body),
		Position: &gitlabapi.PositionOptions{
			BaseSHA:      gitlabapi.Ptr(ic.DiffRefs.BaseSHA),
			StartSHA:     gitlabapi.Ptr(ic.DiffRefs.StartSHA),
			HeadSHA:      gitlabapi.Ptr(ic.DiffRefs.HeadSHA),
			OldPath:      gitlabapi.Ptr(oldPath),
			NewPath:      gitlabapi.Ptr(ic.NewPath),
			PositionType: gitlabapi.Ptr("text"),
			NewLine:      gitlabapi.Ptr(ic.Line),
		},
	}, gitlabapi.WithContext(ctx))
	if err != nil {
		return remoteError("create merge request discussion", resp, err)
	}
	return nil
}

// Approve approves the merge request as the token's user.
func (c *Client) Approve(ctx context.Context, projectID string, mrID int) error {
	_, resp, err := c.api.MergeRequestApprovals.ApproveMergeRequest(projectID, mrID, nil, gitlabapi.WithContext(ctx))
	if err != nil {
		return remoteError("approve merge request", resp, err)
	}
	return nil
}

func (c *Client) diffRefsFor(ctx context.Context, projectID string, mrID int) (review.DiffRefs, error) {
	key := refsKey(projectID, mrID)
	c.mu.Lock()
	refs, ok := c.refs[key]
	delete(c.refs, key)
	c.mu.Unlock()
	if ok {
		return refs, nil
	}

	mr, resp, err := c.api.MergeRequests.GetMergeRequest(projectID, mrID, nil, gitlabapi.WithContext(ctx))
	if err != nil {
		return review.DiffRefs{}, remoteError("get merge request", resp, err)
	}
	return diffRefs(mr), nil
}

func refsKey(projectID string, mrID int) string {
	return fmt.Sprintf("%s!%d", projectID, mrID)
}

func diffRefs(mr *gitlabapi.MergeRequest) review.DiffRefs {
	return review.DiffRefs{
		BaseSHA:  mr.DiffRefs.BaseSha,
		StartSHA: mr.DiffRefs.StartSha,
		HeadSHA:  mr.DiffRefs.HeadSha,
	}
}

// remoteError converts a client-go failure into *scm.RemoteError.
func remoteError(op string, resp *gitlabapi.Response, err error) error {
	re := &scm.RemoteError{Op: op, Err: errors.Wrap(err, "gitlab")}
	if resp != nil && resp.Response != nil {
		re.StatusCode = resp.StatusCode
	}
	var er *gitlabapi.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		re.StatusCode = er.Response.StatusCode
	}
	return re
}
