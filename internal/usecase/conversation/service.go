// Package conversation exposes the conversation log CRUD over the store.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/store"
)

const maxTitleLen = 200

// Service validates requests and delegates to the conversation store.
type Service struct {
	store store.ConversationStore
}

func New(s store.ConversationStore) *Service {
	return &Service{store: s}
}

// Create opens a new conversation for the given agent. An empty title is
// allowed; the UI typically renames after the first turn.
func (s *Service) Create(ctx context.Context, title string, agent domain.Agent) (domain.Conversation, error) {
	if !agent.Valid() {
		return domain.Conversation{}, fmt.Errorf("agent %q: %w", agent, domain.ErrUnknownAgent)
	}
	if len(title) > maxTitleLen {
		return domain.Conversation{}, fmt.Errorf("title exceeds %d characters: %w", maxTitleLen, domain.ErrValidation)
	}
	return s.store.CreateConversation(ctx, title, agent)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Conversation, error) {
	return s.store.ListConversations(ctx)
}

func (s *Service) Rename(ctx context.Context, id, title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is empty: %w", domain.ErrValidation)
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("title exceeds %d characters: %w", maxTitleLen, domain.ErrValidation)
	}
	return s.store.RenameConversation(ctx, id, title)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteConversation(ctx, id)
}

// Messages returns the full ordered log for context reconstruction.
func (s *Service) Messages(ctx context.Context, id string) ([]domain.Message, error) {
	if _, err := s.store.GetConversation(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, id)
}
