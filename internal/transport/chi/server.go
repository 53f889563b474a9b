// Package chi exposes the assistant as a JSON web chat API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docfinder/internal/domain"
	"github.com/kailas-cloud/docfinder/internal/domain/action"
	"github.com/kailas-cloud/docfinder/internal/domain/reply"
	healthuc "github.com/kailas-cloud/docfinder/internal/usecase/health"
	searchuc "github.com/kailas-cloud/docfinder/internal/usecase/search"
	"github.com/kailas-cloud/docfinder/internal/version"
)

// Channel tags events coming from the web chat.
const Channel = "web"

const (
	// maxTextLength is counted in characters. maxBodyBytes leaves room for a
	// full-length text with every character JSON-escaped.
	maxTextLength = 4096
	maxBodyBytes  = 64 << 10
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeSuperseded       = "superseded"
	codeUnavailable      = "storage_unavailable"
	codeTimeout          = "timeout"
	codeInternalError    = "internal_error"
)

// Conversation runs conversation turns.
type Conversation interface {
	Handle(ctx context.Context, ev searchuc.Event) ([]reply.Reply, error)
	Reset(ctx context.Context, sessionID string) error
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionResponse answers session creation.
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	Replies   []reply.Reply `json:"replies"`
}

// TurnResponse answers a message or an action.
type TurnResponse struct {
	Replies []reply.Reply `json:"replies"`
}

// MessageRequest carries free text typed by the user.
type MessageRequest struct {
	Text     string `json:"text"`
	UserName string `json:"user_name,omitempty"`
}

// ActionRequest carries an option the user picked.
type ActionRequest struct {
	Action   string `json:"action"`
	UserName string `json:"user_name,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the web chat API.
type Server struct {
	conversation  Conversation
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(conversation Conversation, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		conversation: conversation,
		health:       health,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(searchuc.ErrSuperseded, http.StatusConflict, codeSuperseded),
		sentinelHandler(domain.ErrStorage, http.StatusServiceUnavailable, codeUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Post("/{sessionID}/messages", s.SendMessage)
		r.Post("/{sessionID}/actions", s.SendAction)
		r.Delete("/{sessionID}", s.DeleteSession)
	})
}

// CreateSession handles POST /v1/sessions: opens a conversation and returns the main menu.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	replies, err := s.conversation.Handle(r.Context(), searchuc.Event{
		Channel:   Channel,
		SessionID: sessionKey(id),
		Action:    action.Of(action.Start).String(),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+id)
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: id, Replies: orEmpty(replies)})
}

// SendMessage handles POST /v1/sessions/{sessionID}/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req MessageRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Text == "" || utf8.RuneCountInString(req.Text) > maxTextLength {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("text must be 1..%d characters", maxTextLength))
		return
	}
	s.turn(w, r, searchuc.Event{
		Channel:   Channel,
		SessionID: sessionKey(id),
		UserName:  req.UserName,
		Text:      req.Text,
	})
}

// SendAction handles POST /v1/sessions/{sessionID}/actions.
func (s *Server) SendAction(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "action is required")
		return
	}
	s.turn(w, r, searchuc.Event{
		Channel:   Channel,
		SessionID: sessionKey(id),
		UserName:  req.UserName,
		Action:    req.Action,
	})
}

// DeleteSession handles DELETE /v1/sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}
	if err := s.conversation.Reset(r.Context(), sessionKey(id)); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.String(),
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) turn(w http.ResponseWriter, r *http.Request, ev searchuc.Event) {
	replies, err := s.conversation.Handle(r.Context(), ev)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TurnResponse{Replies: orEmpty(replies)})
}

// sessionKey namespaces web chat sessions in the shared session store.
func sessionKey(id string) string { return Channel + ":" + id }

func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "session id must be a UUID")
		return "", false
	}
	return id.String(), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func orEmpty(replies []reply.Reply) []reply.Reply {
	if replies == nil {
		return []reply.Reply{}
	}
	return replies
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeMessage(err, sentinel))
		return true
	}
}

// safeMessage exposes validation details but only the sentinel text for backend failures.
func safeMessage(err, sentinel error) string {
	if errors.Is(sentinel, domain.ErrValidation) {
		return err.Error()
	}
	return sentinel.Error()
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
