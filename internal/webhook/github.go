package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dshills/mrscan/internal/orchestrator"
)

const (
	signatureHeaderSHA256 = "X-Hub-Signature-256"
	githubEventHeader     = "X-GitHub-Event"
	deliveryHeader        = "X-GitHub-Delivery"

	githubEventPullRequest = "pull_request"
	githubEventPing        = "ping"
)

var githubActions = map[string]orchestrator.Action{
	"opened":      orchestrator.ActionOpened,
	"reopened":    orchestrator.ActionReopened,
	"synchronize": orchestrator.ActionUpdated,
}

// PullRequestEvent is the subset of the GitHub pull_request payload the
// server reads.
type PullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Draft  bool   `json:"draft"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// VerifySignature validates an X-Hub-Signature-256 value for body.
func VerifySignature(secret []byte, signature string, body []byte) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) {
		return false
	}
	sig, err := hex.DecodeString(signature[len(prefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret []byte, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) handleGitHub(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	if s.githubSecret == "" {
		s.log.Warn().Msg("github webhook secret not configured, skipping signature check")
	} else if !VerifySignature([]byte(s.githubSecret), r.Header.Get(signatureHeaderSHA256), body) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("github webhook signature verification failed")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	eventType := r.Header.Get(githubEventHeader)
	log := s.log.With().Str("event", eventType).Str("delivery", r.Header.Get(deliveryHeader)).Logger()

	switch eventType {
	case githubEventPing:
		log.Info().Msg("github webhook ping")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case githubEventPullRequest:
		var event PullRequestEvent
		if err := json.Unmarshal(body, &event); err != nil {
			log.Warn().Err(err).Msg("invalid pull_request payload")
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}
		number := event.PullRequest.Number
		if number == 0 {
			number = event.Number
		}
		action, ok := githubActions[event.Action]
		if !ok {
			action = orchestrator.Action(event.Action)
		}
		log.Info().Str("repo", event.Repository.FullName).Int("pr", number).Str("action", event.Action).Msg("pull request event")
		s.dispatch(w, r, s.github, orchestrator.Event{
			Action:         action,
			Draft:          event.PullRequest.Draft,
			ProjectID:      event.Repository.FullName,
			MergeRequestID: number,
		})
	default:
		log.Debug().Msg("ignoring unhandled github event")
		writeSuccess(w)
	}
}
