package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/dshills/mrscan/internal/orchestrator"
)

// MaxBodySize bounds a webhook request body.
const MaxBodySize = 10 << 20

const serviceName = "mrscan"

// EventSink receives validated merge-request events.
// *orchestrator.Orchestrator implements it.
type EventSink interface {
	OnMergeRequestEvent(ctx context.Context, ev orchestrator.Event) error
}

// Options configures a Server.
type Options struct {
	// GitLabSecret is compared against X-Gitlab-Token. Empty disables the
	// check.
	GitLabSecret string
	// GitHubSecret signs X-Hub-Signature-256. Empty disables the check.
	GitHubSecret string
	// GitLab and GitHub receive the events of their endpoint. An endpoint
	// without a sink is not routed.
	GitLab EventSink
	GitHub EventSink
	Logger zerolog.Logger
	Now    func() time.Time
}

// Server routes webhook requests.
type Server struct {
	gitlabSecret string
	githubSecret string
	gitlab       EventSink
	github       EventSink
	log          zerolog.Logger
	now          func() time.Time
	router       *mux.Router
}

// New builds a Server and its router.
func New(opts Options) (*Server, error) {
	if opts.GitLab == nil && opts.GitHub == nil {
		return nil, errors.New("webhook: at least one event sink is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		gitlabSecret: opts.GitLabSecret,
		githubSecret: opts.GitHubSecret,
		gitlab:       opts.GitLab,
		github:       opts.GitHub,
		log:          opts.Logger.With().Str("component", "webhook").Logger(),
		now:          opts.Now,
	}
	s.router = s.initRouter()
	return s, nil
}

func (s *Server) initRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.logRequests)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.gitlab != nil {
		router.HandleFunc("/webhook/gitlab", s.handleGitLab).Methods(http.MethodPost)
	}
	if s.github != nil {
		router.HandleFunc("/webhook/github", s.handleGitHub).Methods(http.MethodPost)
	}
	router.NotFoundHandler = s.logRequests(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
	}))
	return router
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"service":   serviceName,
	})
}

// dispatch hands an event to sink and writes the response.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, sink EventSink, ev orchestrator.Event) {
	err := sink.OnMergeRequestEvent(r.Context(), ev)
	var ve *orchestrator.ValidationError
	switch {
	case err == nil:
		writeSuccess(w)
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "Invalid payload")
	default:
		s.log.Error().Err(err).Str("merge_request", ev.Key()).Msg("event not accepted")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Webhook processed successfully"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", sr.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
