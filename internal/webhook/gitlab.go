package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/dshills/mrscan/internal/orchestrator"
)

const (
	gitlabTokenHeader = "X-Gitlab-Token"
	gitlabEventHeader = "X-Gitlab-Event"

	gitlabEventMergeRequest = "Merge Request Hook"
	gitlabEventPush         = "Push Hook"
	gitlabEventPipeline     = "Pipeline Hook"

	objectKindMergeRequest = "merge_request"
)

// gitlabActions maps GitLab hook actions to normalized actions. Others
// pass through unchanged and are ignored by gating.
var gitlabActions = map[string]orchestrator.Action{
	"open":   orchestrator.ActionOpened,
	"reopen": orchestrator.ActionReopened,
	"update": orchestrator.ActionUpdated,
}

type gitlabProject struct {
	ID                int    `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
}

type gitlabMRAttributes struct {
	IID            int    `json:"iid"`
	Title          string `json:"title"`
	Action         string `json:"action"`
	WorkInProgress bool   `json:"work_in_progress"`
	Draft          bool   `json:"draft"`
}

type gitlabPipelineAttributes struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

// GitLabPayload holds the hook fields the server reads. Unknown fields are
// ignored.
type GitLabPayload struct {
	ObjectKind       string          `json:"object_kind"`
	Project          *gitlabProject  `json:"project"`
	ObjectAttributes json.RawMessage `json:"object_attributes"`
	Ref              string          `json:"ref"`
	Commits          []struct{}      `json:"commits"`
	MergeRequest     *struct {
		IID int `json:"iid"`
	} `json:"merge_request"`
}

// validate checks the common fields and, for merge_request hooks, the
// merge-request attributes.
func (p *GitLabPayload) validate() (*gitlabMRAttributes, error) {
	if p.ObjectKind == "" {
		return nil, errors.New("object_kind is required")
	}
	if p.Project == nil || p.Project.ID <= 0 {
		return nil, errors.New("project.id is required")
	}
	if p.ObjectKind != objectKindMergeRequest {
		return nil, nil
	}
	if len(p.ObjectAttributes) == 0 {
		return nil, errors.New("object_attributes is required")
	}
	var attrs gitlabMRAttributes
	if err := json.Unmarshal(p.ObjectAttributes, &attrs); err != nil {
		return nil, errors.Wrap(err, "decoding object_attributes")
	}
	if attrs.IID <= 0 {
		return nil, errors.New("object_attributes.iid is required")
	}
	if attrs.Action == "" {
		return nil, errors.New("object_attributes.action is required")
	}
	return &attrs, nil
}

func (s *Server) verifyGitLabToken(r *http.Request) bool {
	if s.gitlabSecret == "" {
		s.log.Warn().Msg("gitlab webhook secret not configured, skipping token check")
		return true
	}
	token := r.Header.Get(gitlabTokenHeader)
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.gitlabSecret)) == 1
}

func (s *Server) handleGitLab(w http.ResponseWriter, r *http.Request) {
	if !s.verifyGitLabToken(r) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("gitlab webhook token mismatch")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	var payload GitLabPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.log.Warn().Err(errors.Wrap(err, "decoding gitlab hook")).Msg("invalid webhook payload")
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	attrs, err := payload.validate()
	if err != nil {
		s.log.Warn().Err(err).Msg("invalid webhook payload")
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	eventType := r.Header.Get(gitlabEventHeader)
	log := s.log.With().Str("event", eventType).Int("project_id", payload.Project.ID).Logger()
	log.Info().Str("object_kind", payload.ObjectKind).Msg("gitlab webhook received")

	switch eventType {
	case gitlabEventMergeRequest:
		if attrs == nil {
			log.Warn().Str("object_kind", payload.ObjectKind).Msg("merge request hook with wrong object_kind")
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}
		action, ok := gitlabActions[attrs.Action]
		if !ok {
			action = orchestrator.Action(attrs.Action)
		}
		s.dispatch(w, r, s.gitlab, orchestrator.Event{
			Action:         action,
			Draft:          attrs.WorkInProgress || attrs.Draft,
			ProjectID:      strconv.Itoa(payload.Project.ID),
			MergeRequestID: attrs.IID,
		})
		return
	case gitlabEventPush:
		log.Info().Str("ref", payload.Ref).Int("commits", len(payload.Commits)).Msg("push event")
	case gitlabEventPipeline:
		var pipeline gitlabPipelineAttributes
		if len(payload.ObjectAttributes) > 0 {
			if err := json.Unmarshal(payload.ObjectAttributes, &pipeline); err != nil {
				log.Warn().Err(err).Msg("undecodable pipeline attributes")
			}
		}
		ev := log.Info().Int("pipeline_id", pipeline.ID).Str("status", pipeline.Status)
		if payload.MergeRequest != nil {
			ev = ev.Int("mr", payload.MergeRequest.IID)
		}
		ev.Msg("pipeline event")
	default:
		log.Info().Msg("ignoring unhandled gitlab event")
	}
	writeSuccess(w)
}
