// Package chi exposes the conversation API over HTTP: conversation CRUD,
// message log reads, and the server-sent-events turn endpoint.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	chatuc "github.com/kailas-cloud/chatdex/internal/usecase/chat"
	conversationuc "github.com/kailas-cloud/chatdex/internal/usecase/conversation"
	healthuc "github.com/kailas-cloud/chatdex/internal/usecase/health"
)

// errorCode is the machine-readable error discriminator in error responses.
type errorCode string

const (
	codeBadRequest      errorCode = "bad_request"
	codeValidation      errorCode = "validation_failed"
	codeUnknownAgent    errorCode = "unknown_agent"
	codeNotFound        errorCode = "conversation_not_found"
	codeUpstreamError   errorCode = "upstream_error"
	codeUpstreamTimeout errorCode = "upstream_timeout"
	codeInternalError   errorCode = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes HTTP requests to the conversation and turn use cases.
type Server struct {
	conversations *conversationuc.Service
	chat          *chatuc.Service
	health        *healthuc.Service
	defaults      TurnDefaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// TurnDefaults fill sampling parameters the client omitted.
type TurnDefaults struct {
	Temperature float32
	MaxTokens   int
}

// NewServer creates an HTTP API server.
func NewServer(
	conversations *conversationuc.Service,
	chat *chatuc.Service,
	health *healthuc.Service,
	defaults TurnDefaults,
	logger *zap.Logger,
) *Server {
	s := &Server{
		conversations: conversations,
		chat:          chat,
		health:        health,
		defaults:      defaults,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrConversationNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrUnknownAgent, http.StatusBadRequest, codeUnknownAgent),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidation),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeUpstreamTimeout),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, codeUpstreamError),
	}
	return s
}

// Routes mounts all endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1/conversations", func(r chi.Router) {
		r.Post("/", s.CreateConversation)
		r.Get("/", s.ListConversations)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetConversation)
			r.Patch("/", s.RenameConversation)
			r.Delete("/", s.DeleteConversation)
			r.Get("/messages", s.ListMessages)
			r.Post("/turns", s.Turn)
		})
	})
}

type conversationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Agent     string    `json:"agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func conversationToResponse(c domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		Agent:     string(c.Agent),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// CreateConversation handles POST /api/v1/conversations.
func (s *Server) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Agent string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	conv, err := s.conversations.Create(r.Context(), req.Title, domain.Agent(req.Agent))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, conversationToResponse(conv))
}

// ListConversations handles GET /api/v1/conversations.
func (s *Server) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.conversations.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]conversationResponse, len(convs))
	for i, c := range convs {
		items[i] = conversationToResponse(c)
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetConversation handles GET /api/v1/conversations/{id}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversationToResponse(conv))
}

// RenameConversation handles PATCH /api/v1/conversations/{id}.
func (s *Server) RenameConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.conversations.Rename(r.Context(), chi.URLParam(r, "id"), req.Title); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteConversation handles DELETE /api/v1/conversations/{id}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.conversations.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ListMessages handles GET /api/v1/conversations/{id}/messages.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.conversations.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]messageResponse, len(msgs))
	for i, m := range msgs {
		items[i] = messageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type turnRequest struct {
	Agent       string   `json:"agent"`
	Query       string   `json:"query"`
	Code        string   `json:"code,omitempty"`
	CodeLang    string   `json:"code_lang,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Turn handles POST /api/v1/conversations/{id}/turns. The answer streams back
// as server-sent events: one "delta" event per fragment, then a "sources"
// event with the citation list, then "done". Errors raised before the first
// delta arrive as a regular JSON error response; later failures surface as an
// "error" event because the status line is already committed.
func (s *Server) Turn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	conv, err := s.conversations.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	agent := conv.Agent
	if req.Agent != "" {
		agent = domain.Agent(req.Agent)
	}

	turnReq := domain.TurnRequest{
		ConversationID: id,
		Agent:          agent,
		Query:          req.Query,
		Code:           req.Code,
		CodeLang:       req.CodeLang,
		Temperature:    s.defaults.Temperature,
		MaxTokens:      s.defaults.MaxTokens,
	}
	if req.Temperature != nil {
		turnReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		turnReq.MaxTokens = *req.MaxTokens
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	sse := newSSEWriter(w, flusher)
	started := false

	res, err := s.chat.Turn(r.Context(), turnReq, func(delta string) {
		if !started {
			sse.start()
			started = true
		}
		sse.event("delta", map[string]string{"text": delta})
	})
	if err != nil {
		if !started {
			s.handleDomainError(w, err)
			return
		}
		s.logger.Warn("turn failed mid-stream", zap.Error(err))
		sse.event("error", map[string]string{"code": string(errorCodeFor(err))})
		return
	}

	if !started {
		sse.start()
	}
	if len(res.Sources) > 0 {
		sse.event("sources", res.Sources)
	}
	sse.event("done", map[string]any{"answer": res.Answer, "truncated": res.Truncated})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// sseWriter serializes server-sent events. Every event is flushed immediately
// so fragments reach the client as the upstream emits them.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter, flusher http.Flusher) *sseWriter {
	return &sseWriter{w: w, flusher: flusher}
}

func (s *sseWriter) start() {
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

func (s *sseWriter) event(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = s.w.Write([]byte("event: " + name + "\ndata: " + string(data) + "\n\n"))
	s.flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrConversationNotFound,
		domain.ErrUnknownAgent,
		domain.ErrValidation,
		domain.ErrTimeout,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func errorCodeFor(err error) errorCode {
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		return codeNotFound
	case errors.Is(err, domain.ErrUnknownAgent):
		return codeUnknownAgent
	case errors.Is(err, domain.ErrValidation):
		return codeValidation
	case errors.Is(err, domain.ErrTimeout):
		return codeUpstreamTimeout
	case errors.Is(err, domain.ErrUpstream):
		return codeUpstreamError
	default:
		return codeInternalError
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
