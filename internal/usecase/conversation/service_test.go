package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

type mockStore struct {
	createFn func(ctx context.Context, title string, agent domain.Agent) (domain.Conversation, error)
	getFn    func(ctx context.Context, id string) (domain.Conversation, error)
	renameFn func(ctx context.Context, id, title string) error
	msgsFn   func(ctx context.Context, id string) ([]domain.Message, error)
}

func (m *mockStore) CreateConversation(ctx context.Context, title string, agent domain.Agent) (domain.Conversation, error) {
	return m.createFn(ctx, title, agent)
}

func (m *mockStore) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.Conversation{ID: id}, nil
}

func (m *mockStore) ListConversations(context.Context) ([]domain.Conversation, error) {
	return nil, nil
}

func (m *mockStore) RenameConversation(ctx context.Context, id, title string) error {
	return m.renameFn(ctx, id, title)
}

func (m *mockStore) DeleteConversation(context.Context, string) error { return nil }

func (m *mockStore) AppendMessage(context.Context, string, domain.Role, string) (domain.Message, error) {
	return domain.Message{}, nil
}

func (m *mockStore) Messages(ctx context.Context, id string) ([]domain.Message, error) {
	return m.msgsFn(ctx, id)
}

func TestCreateValidatesAgent(t *testing.T) {
	svc := New(&mockStore{
		createFn: func(_ context.Context, title string, agent domain.Agent) (domain.Conversation, error) {
			return domain.Conversation{ID: "c1", Title: title, Agent: agent}, nil
		},
	})

	conv, err := svc.Create(context.Background(), "setup questions", domain.AgentHelpdesk)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if conv.Agent != domain.AgentHelpdesk {
		t.Fatalf("agent = %s", conv.Agent)
	}

	_, err = svc.Create(context.Background(), "t", "oracle")
	if !errors.Is(err, domain.ErrUnknownAgent) {
		t.Fatalf("err = %v, want ErrUnknownAgent", err)
	}

	_, err = svc.Create(context.Background(), strings.Repeat("x", maxTitleLen+1), domain.AgentHelpdesk)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRenameValidatesTitle(t *testing.T) {
	renamed := ""
	svc := New(&mockStore{
		renameFn: func(_ context.Context, _, title string) error {
			renamed = title
			return nil
		},
	})

	if err := svc.Rename(context.Background(), "c1", "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if err := svc.Rename(context.Background(), "c1", "good title"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed != "good title" {
		t.Fatalf("renamed = %q", renamed)
	}
}

func TestMessagesChecksConversation(t *testing.T) {
	svc := New(&mockStore{
		getFn: func(context.Context, string) (domain.Conversation, error) {
			return domain.Conversation{}, domain.ErrConversationNotFound
		},
		msgsFn: func(context.Context, string) ([]domain.Message, error) {
			t.Fatal("Messages must not be read for a missing conversation")
			return nil, nil
		},
	})

	_, err := svc.Messages(context.Background(), "missing")
	if !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("err = %v, want ErrConversationNotFound", err)
	}
}
