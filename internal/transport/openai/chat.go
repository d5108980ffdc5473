package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/metrics"
)

// Chat issues streaming chat completions against an OpenAI-compatible API.
type Chat struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ChatConfig holds the completion provider settings.
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewChat creates a streaming completion adapter.
func NewChat(cfg ChatConfig) *Chat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chat{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Stream starts a streaming completion and exposes it as a domain.Stream.
// A rejected initial request maps to domain.ErrUpstream; a mid-stream
// transport failure surfaces from Recv as a truncation.
func (c *Chat) Stream(
	ctx context.Context, messages []domain.Message, temperature float32, maxTokens int,
) (domain.Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(messages),
		Temperature: temperature,
		TopP:        1.0,
		MaxTokens:   maxTokens,
		Stream:      true,
	}

	upstream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		metrics.CompletionStreamsTotal.WithLabelValues(c.model, "rejected").Inc()
		return nil, fmt.Errorf("create completion stream: %v: %w", err, domain.ErrUpstream)
	}

	return &tokenStream{upstream: upstream, model: c.model}, nil
}

// tokenStream adapts the SSE delta stream to domain.Stream. Recv skips
// empty deltas and reports io.EOF on the upstream end-of-stream signal.
type tokenStream struct {
	upstream *openai.ChatCompletionStream
	model    string
	done     bool
}

func (s *tokenStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		resp, err := s.upstream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			metrics.CompletionStreamsTotal.WithLabelValues(s.model, "ok").Inc()
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			metrics.CompletionStreamsTotal.WithLabelValues(s.model, "truncated").Inc()
			return "", fmt.Errorf("stream truncated: %v: %w", err, domain.ErrUpstream)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *tokenStream) Close() error {
	s.done = true
	if err := s.upstream.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}

func toChatMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}
