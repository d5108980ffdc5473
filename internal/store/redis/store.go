// Package redis implements store.Store on Redis via rueidis. Conversations
// live in hashes indexed by an updated-at sorted set; each message log is a
// list of JSON entries, so append is a single atomic RPUSH.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/store"
)

// Compile-time check: Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements store.Store via rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "chatdex:"
	}

	return &Store{client: client, prefix: prefix}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) convKey(id string) string     { return s.prefix + "conv:" + id }
func (s *Store) messagesKey(id string) string { return s.prefix + "conv:" + id + ":msgs" }
func (s *Store) indexKey() string             { return s.prefix + "convs" }

// CreateConversation stores a new conversation and indexes it.
func (s *Store) CreateConversation(
	ctx context.Context, title string, agent domain.Agent,
) (domain.Conversation, error) {
	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Agent:     agent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	cmd := s.client.B().Hset().Key(s.convKey(conv.ID)).FieldValue().
		FieldValue("title", conv.Title).
		FieldValue("agent", string(conv.Agent)).
		FieldValue("created_at", conv.CreatedAt.Format(time.RFC3339Nano)).
		FieldValue("updated_at", conv.UpdatedAt.Format(time.RFC3339Nano)).
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	if err := s.reindex(ctx, conv.ID, now); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	cmd := s.client.B().Hgetall().Key(s.convKey(id)).Build()
	m, err := s.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}
	return conversationFromHash(id, m)
}

// ListConversations returns conversations newest-updated first.
func (s *Store) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	cmd := s.client.B().Zrange().Key(s.indexKey()).Min("0").Max("-1").Rev().Build()
	ids, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	convs := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.GetConversation(ctx, id)
		if err != nil {
			// Index entry without a hash: skip stale id.
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// RenameConversation updates the title and bumps updated-at.
func (s *Store) RenameConversation(ctx context.Context, id, title string) error {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return err
	}
	now := time.Now().UTC()
	cmd := s.client.B().Hset().Key(s.convKey(id)).FieldValue().
		FieldValue("title", title).
		FieldValue("updated_at", now.Format(time.RFC3339Nano)).
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("rename conversation %s: %w", id, err)
	}
	return s.reindex(ctx, id, now)
}

// DeleteConversation removes the conversation, its message log, and its index entry.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return err
	}
	cmds := []rueidis.Completed{
		s.client.B().Del().Key(s.convKey(id), s.messagesKey(id)).Build(),
		s.client.B().Zrem().Key(s.indexKey()).Member(id).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("delete conversation %s: %w", id, err)
		}
	}
	return nil
}

// AppendMessage appends one message to the conversation log (single RPUSH).
func (s *Store) AppendMessage(
	ctx context.Context, conversationID string, role domain.Role, content string,
) (domain.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}

	cmd := s.client.B().Rpush().Key(s.messagesKey(conversationID)).Element(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}

	touch := s.client.B().Hset().Key(s.convKey(conversationID)).FieldValue().
		FieldValue("updated_at", msg.CreatedAt.Format(time.RFC3339Nano)).
		Build()
	if err := s.client.Do(ctx, touch).Error(); err != nil {
		return domain.Message{}, fmt.Errorf("touch conversation %s: %w", conversationID, err)
	}
	if err := s.reindex(ctx, conversationID, msg.CreatedAt); err != nil {
		return domain.Message{}, err
	}

	return msg, nil
}

// Messages returns the full message log in insertion order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	cmd := s.client.B().Lrange().Key(s.messagesKey(conversationID)).Start(0).Stop(-1).Build()
	raw, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(raw))
	for _, entry := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Get retrieves a KV value.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(s.prefix + key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, store.ErrKeyNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Set stores a KV value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(s.prefix + key).Value(string(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) reindex(ctx context.Context, id string, at time.Time) error {
	cmd := s.client.B().Zadd().Key(s.indexKey()).ScoreMember().
		ScoreMember(float64(at.UnixMicro()), id).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("index conversation %s: %w", id, err)
	}
	return nil
}

func conversationFromHash(id string, m map[string]string) (domain.Conversation, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, m["created_at"])
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("parse created_at %q: %w", m["created_at"], err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, m["updated_at"])
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("parse updated_at %q: %w", m["updated_at"], err)
	}
	return domain.Conversation{
		ID:        id,
		Title:     m["title"],
		Agent:     domain.Agent(m["agent"]),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
