package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scm"
)

const mrJSON = `{
	"id": 900,
	"iid": 7,
	"project_id": 42,
	"title": "Add checkout flow",
	"author": {"username": "alice"},
	"source_branch": "feature/checkout",
	"target_branch": "main",
	"draft": false,
	"web_url": "https://gitlab.example.com/shop/web/-/merge_requests/7",
	"diff_refs": {"base_sha": "base1", "head_sha": "head1", "start_sha": "start1"}
}`

func setup(t *testing.T) (*Client, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c, err := NewClient(Options{
		BaseURL:    server.URL,
		Token:      "glpat-test",
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return c, mux
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "https://gitlab.example.com"})
	assert.Error(t, err)
}

func TestFetchMergeRequest(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "glpat-test", r.Header.Get("PRIVATE-TOKEN"))
		_, _ = fmt.Fprint(w, mrJSON)
	})

	mr, err := c.FetchMergeRequest(context.Background(), "42", 7)
	require.NoError(t, err)
	assert.Equal(t, scm.MergeRequest{
		ProjectID:    "42",
		IID:          7,
		Title:        "Add checkout flow",
		Author:       "alice",
		SourceBranch: "feature/checkout",
		TargetBranch: "main",
		WebURL:       "https://gitlab.example.com/shop/web/-/merge_requests/7",
		DiffRefs:     review.DiffRefs{BaseSHA: "base1", StartSHA: "start1", HeadSHA: "head1"},
	}, mr)
}

func TestFetchMergeRequest_NotFound(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/api/v4/projects/42/merge_requests/99", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"message":"404 Not found"}`)
	})

	_, err := c.FetchMergeRequest(context.Background(), "42", 99)
	var re *scm.RemoteError
	require.True(t, errors.As(err, &re), "want *scm.RemoteError, got %T", err)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
}

func TestFetchChangeSet_Paginates(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, mrJSON)
	})
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7/diffs", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("X-Next-Page", "2")
			_, _ = fmt.Fprint(w, `[{"old_path":"a.js","new_path":"a.js","diff":"@@ -1 +1 @@\n+console.log(1)\n"}]`)
		case "2":
			_, _ = fmt.Fprint(w, `[{"old_path":"old.go","new_path":"new.go","diff":"@@ -0,0 +1 @@\n+package x\n","renamed_file":true}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	changes, err := c.FetchChangeSet(context.Background(), "42", 7)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	refs := review.DiffRefs{BaseSHA: "base1", StartSHA: "start1", HeadSHA: "head1"}
	assert.Equal(t, "a.js", changes[0].NewPath)
	assert.Equal(t, refs, changes[0].DiffRefs)
	assert.Equal(t, "old.go", changes[1].OldPath)
	assert.Equal(t, "new.go", changes[1].NewPath)
	assert.Equal(t, refs, changes[1].DiffRefs)
}

func TestFetchChangeSet_ReusesMergeRequestRefs(t *testing.T) {
	c, mux := setup(t)
	var gets atomic.Int32
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7", func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		_, _ = fmt.Fprint(w, mrJSON)
	})
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7/diffs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `[{"old_path":"a.js","new_path":"a.js","diff":"@@ -1 +1 @@\n+x\n"}]`)
	})

	ctx := context.Background()
	mr, err := c.FetchMergeRequest(ctx, "42", 7)
	require.NoError(t, err)
	changes, err := c.FetchChangeSet(ctx, "42", 7)
	require.NoError(t, err)

	assert.Equal(t, int32(1), gets.Load(), "merge request should be fetched once")
	require.Len(t, changes, 1)
	assert.Equal(t, mr.DiffRefs, changes[0].DiffRefs)

	// The remembered refs are consumed; a later change-set fetch reads them again.
	_, err = c.FetchChangeSet(ctx, "42", 7)
	require.NoError(t, err)
	assert.Equal(t, int32(2), gets.Load())
}

func TestPostSummaryComment(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7/notes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "## report", body["body"])
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, `{"id":1,"body":"## report"}`)
	})

	require.NoError(t, c.PostSummaryComment(context.Background(), "42", 7, "## report"))
}

func TestPostInlineComment(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7/discussions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Body     string `json:"body"`
			Position struct {
				BaseSHA      string `json:"base_sha"`
				StartSHA     string `json:"start_sha"`
				HeadSHA      string `json:"head_sha"`
				OldPath      string `json:"old_path"`
				NewPath      string `json:"new_path"`
				PositionType string `json:"position_type"`
				NewLine      int    `json:"new_line"`
			} `json:"position"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "danger", body.Body)
		assert.Equal(t, "base1", body.Position.BaseSHA)
		assert.Equal(t, "start1", body.Position.StartSHA)
		assert.Equal(t, "head1", body.Position.HeadSHA)
		assert.Equal(t, "a.js", body.Position.OldPath)
		assert.Equal(t, "a.js", body.Position.NewPath)
		assert.Equal(t, "text", body.Position.PositionType)
		assert.Equal(t, 3, body.Position.NewLine)
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, `{"id":"abc"}`)
	})

	err := c.PostInlineComment(context.Background(), "42", 7, scm.InlineComment{
		Body:     "danger",
		NewPath:  "a.js",
		Line:     3,
		DiffRefs: review.DiffRefs{BaseSHA: "base1", StartSHA: "start1", HeadSHA: "head1"},
	})
	require.NoError(t, err)
}

func TestApprove_Forbidden(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7/approve", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `{"message":"403 Forbidden"}`)
	})

	err := c.Approve(context.Background(), "42", 7)
	var re *scm.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "approve merge request", re.Op)
	assert.Equal(t, http.StatusForbidden, re.StatusCode)
}

func TestApprove(t *testing.T) {
	c, mux := setup(t)
	called := false
	mux.HandleFunc("/api/v4/projects/42/merge_requests/7/approve", func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, _ = fmt.Fprint(w, `{"id":900,"iid":7}`)
	})

	require.NoError(t, c.Approve(context.Background(), "42", 7))
	assert.True(t, called)
}
