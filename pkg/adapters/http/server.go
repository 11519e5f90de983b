package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dylan-euc/client-side-quiz/internal/compiler"
	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/internal/presentation/graph"
	"github.com/dylan-euc/client-side-quiz/internal/runtime"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/observability"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/dylan-euc/client-side-quiz/pkg/runner"
	"github.com/dylan-euc/client-side-quiz/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Catalog is the read side of the flow registry the API serves.
type Catalog interface {
	ports.FlowRegistry
	All() []*domain.FlowDefinition
}

// Server serves the flow catalog and drives sessions through a session.Manager.
type Server struct {
	flows    Catalog
	sessions *session.Manager
	streams  *StreamManager
	logger   *slog.Logger

	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	reloads  func(ctx context.Context) (<-chan struct{}, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records request metrics and serves gatherer on /metrics.
func WithMetrics(m *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithReloads streams flow reload notifications on /events.
func WithReloads(subscribe func(ctx context.Context) (<-chan struct{}, error)) Option {
	return func(s *Server) {
		s.reloads = subscribe
	}
}

// NewServer creates a Server.
func NewServer(flows Catalog, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		flows:    flows,
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates the HTTP handler for flows and sessions.
func NewHandler(flows Catalog, sessions *session.Manager, opts ...Option) http.Handler {
	return NewServer(flows, sessions, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", observability.Handler(s.gatherer))
	}

	r.Get("/health", s.GetHealth)
	r.Get("/events", s.SubscribeReloads)

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", s.ListFlows)
		r.Get("/{id}", s.GetFlow)
		r.Get("/{id}/versions", s.GetFlowVersions)
		r.Get("/{id}/graph", s.GetGraph)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.StartSession)
		r.Get("/", s.ListSessions)
		r.Get("/{id}", s.GetSession)
		r.Delete("/{id}", s.DeleteSession)
		r.Post("/{id}/answer", s.SubmitAnswer)
		r.Post("/{id}/back", s.GoBack)
		r.Post("/{id}/reset", s.ResetSession)
		r.Post("/{id}/abandon", s.AbandonSession)
		r.Get("/{id}/events", s.SubscribeSession)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -- Payloads --

// FlowSummary describes the current version of a flow.
type FlowSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Versions    []string `json:"versions"`
	Questions   int      `json:"questions"`
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	FlowID  string `json:"flow_id"`
	Version string `json:"version,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Resume  bool   `json:"resume,omitempty"`
}

// AnswerRequest is the body of POST /sessions/{id}/answer.
type AnswerRequest struct {
	Value any `json:"value"`
}

// SessionResponse pairs the screen to show with the session state.
type SessionResponse struct {
	Screen runner.Screen    `json:"screen"`
	State  *domain.Snapshot `json:"state"`
}

func newSessionResponse(sess *runtime.Session) SessionResponse {
	return SessionResponse{Screen: runner.NewScreen(sess), State: sess.Snapshot()}
}

// -- Flows --

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"flows":  len(s.flows.All()),
	})
}

// ListFlows handles GET /flows.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	all := s.flows.All()
	out := make([]FlowSummary, 0, len(all))
	for _, f := range all {
		versions := s.flows.GetFlowVersions(f.ID)
		summary := FlowSummary{
			ID:          f.ID,
			Name:        f.Name,
			Version:     f.Version,
			Description: f.Description,
			Versions:    make([]string, len(versions)),
			Questions:   f.InputStepCount(),
		}
		for i, v := range versions {
			summary.Versions[i] = v.Version
		}
		out = append(out, summary)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) lookupFlow(r *http.Request) (*domain.FlowDefinition, error) {
	id := chi.URLParam(r, "id")
	if version := r.URL.Query().Get("version"); version != "" {
		if f, ok := s.flows.GetFlowByVersion(id, version); ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: %s@%s", domain.ErrFlowNotFound, id, version)
	}
	if f, ok := s.flows.GetFlow(id); ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
}

// GetFlow handles GET /flows/{id}. It returns the flow document.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.lookupFlow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, compiler.Decompile(flow))
}

// GetFlowVersions handles GET /flows/{id}/versions.
func (s *Server) GetFlowVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	versions := s.flows.GetFlowVersions(id)
	if len(versions) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id))
		return
	}
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.Version
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetGraph handles GET /flows/{id}/graph as a Mermaid document.
// With ?session_id= the session's path is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	flow, err := s.lookupFlow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session_id"); id != "" {
		sess, err := s.sessions.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		flow = sess.Flow()
		overlay = &graph.GraphOverlay{VisitedNodes: sess.History(), CurrentNode: sess.CurrentStepID()}
	}

	w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(flow, overlay))
}

// -- Sessions --

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FlowID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.sessions.Start(r.Context(), body.FlowID, session.StartOptions{
		UserID:  body.UserID,
		Version: body.Version,
		Resume:  body.Resume,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

// ListSessions handles GET /sessions?flow_id=&user_id=&status=.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.sessions.List(r.Context(), ports.SessionFilter{
		FlowID: q.Get("flow_id"),
		UserID: q.Get("user_id"),
		Status: domain.SessionStatus(q.Get("status")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.SessionRecord{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// SubmitAnswer handles POST /sessions/{id}/answer. A rejected answer is a 200
// whose state carries the validation message.
func (s *Server) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var body AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if text, ok := body.Value.(string); ok {
		clean, err := runner.SanitizeInput(text)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid input: %v", err), http.StatusBadRequest)
			s.logger.Warn("SubmitAnswer: Input rejected", logging.Err(err), slog.Int("size", len(text)))
			return
		}
		body.Value = clean
	}

	id := chi.URLParam(r, "id")
	s.transition(w, r, id, func(ctx context.Context) (*runtime.Session, error) {
		return s.sessions.Submit(ctx, id, body.Value)
	})
}

// GoBack handles POST /sessions/{id}/back.
func (s *Server) GoBack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.transition(w, r, id, func(ctx context.Context) (*runtime.Session, error) {
		return s.sessions.Back(ctx, id)
	})
}

// ResetSession handles POST /sessions/{id}/reset. The response describes the
// new session that replaces the abandoned one.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

// AbandonSession handles POST /sessions/{id}/abandon.
func (s *Server) AbandonSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Abandon(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition applies fn and broadcasts the resulting diff to subscribers.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, id string, fn func(context.Context) (*runtime.Session, error)) {
	var before *domain.Snapshot
	if s.streams.HasSubscribers(id) {
		if prev, err := s.sessions.Get(r.Context(), id); err == nil {
			before = prev.Snapshot()
		}
	}

	sess, err := fn(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := newSessionResponse(sess)
	if before != nil {
		if diff := domain.Diff(before, resp.State); diff != nil {
			if payload, err := json.Marshal(diff); err == nil {
				s.streams.Broadcast(id, string(payload))
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// -- Events --

// SubscribeSession handles GET /sessions/{id}/events (SSE). Each message is a
// JSON SnapshotDiff.
func (s *Server) SubscribeSession(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	sessionID := chi.URLParam(r, "id")

	ch, cancel := s.streams.Subscribe(sessionID)
	defer cancel()

	startSSE(w)
	flusher.Flush()
	s.logger.Debug("SSE: Subscribed to session", logging.SessionID(sessionID))

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// SubscribeReloads handles GET /events (SSE), announcing flow reloads.
func (s *Server) SubscribeReloads(w http.ResponseWriter, r *http.Request) {
	if s.reloads == nil {
		http.Error(w, "Reload events not enabled", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	events, err := s.reloads(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	startSSE(w)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

// startSSE writes the stream headers and lifts the server write timeout,
// which would otherwise cut long-lived streams.
func startSSE(w http.ResponseWriter) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
}

// -- Helpers --

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", logging.Err(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrFlowNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionCompleted),
		errors.Is(err, domain.ErrSessionAbandoned),
		errors.Is(err, domain.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			logging.Err(err),
		)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
