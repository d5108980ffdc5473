// Package chat sequences one conversational turn: persist the user message,
// embed, retrieve, assemble, build the prompt, stream the completion, and
// persist whatever answer accumulated.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/logger"
	"github.com/kailas-cloud/chatdex/internal/metrics"
	"github.com/kailas-cloud/chatdex/internal/store"
	"github.com/kailas-cloud/chatdex/internal/usecase/prompt"
)

// Retriever produces fused, pruned evidence for a query vector.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32) ([]domain.Hit, error)
}

// Streamer starts a streaming completion for an ordered message sequence.
type Streamer interface {
	Stream(ctx context.Context, messages []domain.Message, temperature float32, maxTokens int) (domain.Stream, error)
}

// Service is the turn orchestrator.
type Service struct {
	store     store.ConversationStore
	embedder  domain.Embedder
	retriever Retriever
	streamer  Streamer
	helpdesk  prompt.HelpdeskBuilder
	translate prompt.TranslateBuilder
}

// New creates the orchestrator over its collaborators.
func New(s store.ConversationStore, embedder domain.Embedder, retriever Retriever, streamer Streamer) *Service {
	return &Service{
		store:     s,
		embedder:  embedder,
		retriever: retriever,
		streamer:  streamer,
	}
}

// Turn runs one full turn. Steps execute strictly in order with no overlap:
// the user message is persisted first, then (for the helpdesk agent) the query
// is embedded and retrieval evidence assembled, the agent's prompt is built,
// and the completion stream is consumed to the end. Every fragment is handed
// to onDelta as it arrives; the accumulated answer is persisted even when the
// stream ends on a truncation, so the caller never shows text that was not
// stored. onDelta may be nil.
func (s *Service) Turn(ctx context.Context, req domain.TurnRequest, onDelta func(string)) (domain.TurnResult, error) {
	log := logger.FromContext(ctx)

	if err := s.validate(req); err != nil {
		metrics.TurnsTotal.WithLabelValues(string(req.Agent), "invalid").Inc()
		return domain.TurnResult{}, err
	}
	if _, err := s.store.GetConversation(ctx, req.ConversationID); err != nil {
		metrics.TurnsTotal.WithLabelValues(string(req.Agent), "error").Inc()
		return domain.TurnResult{}, fmt.Errorf("load conversation: %w", err)
	}

	if _, err := s.store.AppendMessage(ctx, req.ConversationID, domain.RoleUser, s.userContent(req)); err != nil {
		metrics.TurnsTotal.WithLabelValues(string(req.Agent), "error").Inc()
		return domain.TurnResult{}, fmt.Errorf("persist user message: %w", err)
	}

	messages, sources, err := s.buildPrompt(ctx, req)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(req.Agent), "error").Inc()
		return domain.TurnResult{}, err
	}

	stream, err := s.streamer.Stream(ctx, messages, req.Temperature, req.MaxTokens)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(req.Agent), "error").Inc()
		return domain.TurnResult{}, fmt.Errorf("start completion: %w", err)
	}
	defer stream.Close()

	answer, truncated := consume(stream, onDelta)
	if truncated {
		log.Warn("completion stream truncated",
			zap.String("conversation_id", req.ConversationID),
			zap.Int("partial_len", len(answer)),
		)
	}

	// Whatever accumulated is persisted, truncated or not.
	if answer != "" {
		if _, err := s.store.AppendMessage(ctx, req.ConversationID, domain.RoleAssistant, answer); err != nil {
			metrics.TurnsTotal.WithLabelValues(string(req.Agent), "error").Inc()
			return domain.TurnResult{}, fmt.Errorf("persist assistant message: %w", err)
		}
	}

	status := "ok"
	if truncated {
		status = "truncated"
	}
	metrics.TurnsTotal.WithLabelValues(string(req.Agent), status).Inc()

	return domain.TurnResult{Answer: answer, Sources: sources, Truncated: truncated}, nil
}

func (s *Service) validate(req domain.TurnRequest) error {
	if !req.Agent.Valid() {
		return fmt.Errorf("agent %q: %w", req.Agent, domain.ErrUnknownAgent)
	}
	if strings.TrimSpace(req.Query) == "" && req.Code == "" {
		return fmt.Errorf("query is empty: %w", domain.ErrValidation)
	}
	if req.Temperature < 0 || req.Temperature > 1 {
		return fmt.Errorf("temperature %v outside [0,1]: %w", req.Temperature, domain.ErrValidation)
	}
	if req.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive: %w", domain.ErrValidation)
	}
	return nil
}

// userContent is what lands in the conversation log as the user turn. For the
// translate agent the attached code travels with the query so a full reread of
// the log reconstructs the exchange.
func (s *Service) userContent(req domain.TurnRequest) string {
	if req.Agent == domain.AgentTranslate && req.Code != "" {
		if req.Query == "" {
			return req.Code
		}
		return req.Query + "\n\n" + req.Code
	}
	return req.Query
}

func (s *Service) buildPrompt(ctx context.Context, req domain.TurnRequest) ([]domain.Message, []domain.Citation, error) {
	switch req.Agent {
	case domain.AgentTranslate:
		return s.translate.Build(req.Query, req.Code, req.CodeLang), nil, nil
	case domain.AgentHelpdesk:
		res, err := s.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, nil, fmt.Errorf("embed query: %w", err)
		}
		hits, err := s.retriever.Retrieve(ctx, res.Embedding)
		if err != nil {
			return nil, nil, fmt.Errorf("retrieve: %w", err)
		}
		contextText, sources := prompt.Assemble(hits)
		return s.helpdesk.Build(req.Query, contextText), sources, nil
	default:
		return nil, nil, fmt.Errorf("agent %q: %w", req.Agent, domain.ErrUnknownAgent)
	}
}

// consume drains the stream, fanning each fragment to onDelta. It returns the
// concatenation in yield order and whether the stream ended on a transport
// failure instead of the upstream end-of-stream signal.
func consume(stream domain.Stream, onDelta func(string)) (string, bool) {
	var sb strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), false
		}
		if err != nil {
			return sb.String(), true
		}
		sb.WriteString(fragment)
		if onDelta != nil {
			onDelta(fragment)
		}
	}
}
