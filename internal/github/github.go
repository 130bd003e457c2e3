package github

import (
	"context"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scm"
)

const filesPerPage = 100

// Options configures a Client.
type Options struct {
	// BaseURL overrides https://api.github.com/, e.g. for GitHub Enterprise.
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the GitHub REST API.
type Client struct {
	api *gh.Client
	log zerolog.Logger
}

var _ scm.Client = (*Client)(nil)

// NewClient creates a GitHub client authenticated with a token.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, errors.New("github token is not set")
	}
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	api := gh.NewClient(oauth2.NewClient(ctx, ts))

	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, errors.Wrapf(err, "parsing github api url %q", opts.BaseURL)
		}
		api.BaseURL = u
	}
	return &Client{
		api: api,
		log: opts.Logger.With().Str("component", "github").Logger(),
	}, nil
}

// SplitProject parses an "owner/repo" project ID.
func SplitProject(projectID string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(projectID, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", errors.Errorf("project %q is not in owner/repo form", projectID)
	}
	return owner, repo, nil
}

// FetchMergeRequest returns the pull request's metadata.
func (c *Client) FetchMergeRequest(ctx context.Context, projectID string, mrID int) (scm.MergeRequest, error) {
	pr, err := c.pullRequest(ctx, projectID, mrID)
	if err != nil {
		return scm.MergeRequest{}, err
	}
	return scm.MergeRequest{
		ProjectID:    projectID,
		IID:          pr.GetNumber(),
		Title:        pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Draft:        pr.GetDraft(),
		WebURL:       pr.GetHTMLURL(),
		DiffRefs:     diffRefs(pr),
	}, nil
}

// FetchChangeSet lists the pull request's files. The file patch serves as
// the diff; files without a patch (binary or too large) get an empty diff.
func (c *Client) FetchChangeSet(ctx context.Context, projectID string, mrID int) ([]review.ChangeEntry, error) {
	pr, err := c.pullRequest(ctx, projectID, mrID)
	if err != nil {
		return nil, err
	}
	owner, repo, _ := SplitProject(projectID)
	refs := diffRefs(pr)

	var changes []review.ChangeEntry
	opts := &gh.ListOptions{PerPage: filesPerPage}
	for {
		files, resp, err := c.api.PullRequests.ListFiles(ctx, owner, repo, mrID, opts)
		if err != nil {
			return nil, remoteError("list pull request files", resp, err)
		}
		for _, f := range files {
			oldPath := f.GetPreviousFilename()
			if oldPath == "" {
				oldPath = f.GetFilename()
			}
			changes = append(changes, review.ChangeEntry{
				OldPath:  oldPath,
				NewPath:  f.GetFilename(),
				Diff:     f.GetPatch(),
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
		Int("pr", mrID).
		Int("files", len(changes)).
		Msg("fetched change-set")
	return changes, nil
}

// PostSummaryComment adds an issue comment to the pull request.
func (c *Client) PostSummaryComment(ctx context.Context, projectID string, mrID int, body string) error {
	owner, repo, err := SplitProject(projectID)
	if err != nil {
		return err
	}
	_, resp, err := c.api.Issues.CreateComment(ctx, owner, repo, mrID, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return remoteError("create issue comment", resp, err)
	}
	return nil
}

// PostInlineComment adds a review comment on the new side of a file.
func (c *Client) PostInlineComment(ctx context.Context, projectID string, mrID int, ic scm.InlineComment) error {
	owner, repo, err := SplitProject(projectID)
	if err != nil {
		return err
	}
	_, resp, err := c.api.PullRequests.CreateComment(ctx, owner, repo, mrID, &gh.PullRequestComment{
		Body:     gh.Ptr(ic.Body),
		CommitID: gh.Ptr(ic.DiffRefs.HeadSHA),
		Path:     gh.Ptr(ic.NewPath),
		Line:     gh.Ptr(ic.Line),
		Side:     gh.Ptr("RIGHT"),
	})
	if err != nil {
		return remoteError("create review comment", resp, err)
	}
	return nil
}

// Approve submits an approving review.
func (c *Client) Approve(ctx context.Context, projectID string, mrID int) error {
	owner, repo, err := SplitProject(projectID)
	if err != nil {
		return err
	}
	_, resp, err := c.api.PullRequests.CreateReview(ctx, owner, repo, mrID, &gh.PullRequestReviewRequest{
		Event: gh.Ptr("APPROVE"),
	})
	if err != nil {
		return remoteError("approve pull request", resp, err)
	}
	return nil
}

func (c *Client) pullRequest(ctx context.Context, projectID string, mrID int) (*gh.PullRequest, error) {
	owner, repo, err := SplitProject(projectID)
	if err != nil {
		return nil, err
	}
	pr, resp, err := c.api.PullRequests.Get(ctx, owner, repo, mrID)
	if err != nil {
		return nil, remoteError("get pull request", resp, err)
	}
	return pr, nil
}

// diffRefs maps the PR base and head to diff refs. GitHub has no separate
// start commit, so StartSHA repeats the base.
func diffRefs(pr *gh.PullRequest) review.DiffRefs {
	base := pr.GetBase().GetSHA()
	return review.DiffRefs{
		BaseSHA:  base,
		StartSHA: base,
		HeadSHA:  pr.GetHead().GetSHA(),
	}
}

func remoteError(op string, resp *gh.Response, err error) error {
	re := &scm.RemoteError{Op: op, Err: errors.Wrap(err, "github")}
	if resp != nil && resp.Response != nil {
		re.StatusCode = resp.StatusCode
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		re.StatusCode = er.Response.StatusCode
	}
	return re
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo returns "owner/repo" parsed from the git remote origin URL.
func DetectRepo(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", errors.Wrap(err, "cannot detect repo: git remote get-url origin failed")
	}
	owner, repo, err := ParseRemoteURL(strings.TrimSpace(string(out)))
	if err != nil {
		return "", err
	}
	return owner + "/" + repo, nil
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(remote, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", errors.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}
