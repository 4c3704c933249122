package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/inkstory-labs/ink-core/internal/admission"
	"github.com/inkstory-labs/ink-core/internal/bus"
	"github.com/inkstory-labs/ink-core/internal/config"
	"github.com/inkstory-labs/ink-core/internal/genai"
	"github.com/inkstory-labs/ink-core/internal/store"
	"github.com/inkstory-labs/ink-core/internal/ttsgateway"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps collects the collaborators the API surface needs. Bus, Synth and
// Images may be nil; the corresponding endpoints degrade gracefully.
type Deps struct {
	Store   *store.Store
	Limiter *admission.Limiter
	Lock    *admission.Lock
	Stories genai.StoryGenerator
	Images  genai.ImageGenerator
	Synth   ttsgateway.Synthesizer
	Bus     *bus.Client
}

// Server is the HTTP front of the story service.
type Server struct {
	cfg    config.Config
	log    *slog.Logger
	deps   Deps
	router *mux.Router
	clock  func() time.Time
}

func New(cfg config.Config, deps Deps, log *slog.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		log:   log.With(slog.String("component", "httpapi")),
		deps:  deps,
		clock: time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the fully wired root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Use(limitBody)

	r.HandleFunc("/api/generate", s.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/api/generate-audio", s.handleGenerateAudio).Methods(http.MethodPost)
	r.HandleFunc("/api/generate-image", s.handleGenerateImage).Methods(http.MethodPost)
	r.HandleFunc("/api/stories/{id}", s.handleGetStory).Methods(http.MethodGet)
	r.HandleFunc("/api/highlights", s.handleSaveHighlight).Methods(http.MethodPost)
	r.HandleFunc("/api/highlights", s.handleListHighlights).Methods(http.MethodGet)
	r.HandleFunc("/api/thoughts", s.handleSaveThought).Methods(http.MethodPost)
	r.HandleFunc("/api/thoughts", s.handleListThoughts).Methods(http.MethodGet)
	r.HandleFunc("/api/like", s.handleLike).Methods(http.MethodPost)
	r.HandleFunc("/api/limit", s.handleDailyLimit).Methods(http.MethodGet)
	r.HandleFunc("/api/rate-limit", s.handleRateLimitStatus).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if s.cfg.Media.Dir != "" {
		prefix := s.cfg.Media.BaseURL
		if prefix == "" {
			prefix = "/media"
		}
		r.PathPrefix(prefix + "/").Handler(
			http.StripPrefix(prefix+"/", http.FileServer(http.Dir(s.cfg.Media.Dir))))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleRateLimitStatus reports a class's window state without consuming
// a slot, for client-side pre-flight checks.
func (s *Server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	class := admission.Class(r.URL.Query().Get("class"))
	identity := admission.ResolveIdentity(deviceID, r.Header)
	res := s.deps.Limiter.Status(r.Context(), identity, class)
	writeSuccess(w, http.StatusOK, map[string]any{
		"allowed":   res.Allowed,
		"limit":     res.Limit,
		"remaining": res.Remaining,
		"reset":     res.ResetAt.Unix(),
	})
}
