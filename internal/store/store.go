// Package store defines the conversation persistence contract. Two drivers
// implement it: redis (rueidis) and sqlite (modernc).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// ErrKeyNotFound signals a missing KV entry.
var ErrKeyNotFound = errors.New("key not found")

// Store is an append-only conversation log keyed by conversation identity,
// plus a small KV surface used by the embedding cache. Message append is
// atomic; Messages returns the full log in insertion order.
type Store interface {
	ConversationStore
	KVStore
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// ConversationStore manages conversations and their message logs.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title string, agent domain.Agent) (domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	// ListConversations returns conversations ordered by updated-at, newest first.
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) error
	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error
	// AppendMessage appends atomically and bumps the conversation updated-at.
	AppendMessage(ctx context.Context, conversationID string, role domain.Role, content string) (domain.Message, error)
	Messages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
