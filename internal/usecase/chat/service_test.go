package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

type mockConvStore struct {
	getFn    func(ctx context.Context, id string) (domain.Conversation, error)
	appendFn func(ctx context.Context, conversationID string, role domain.Role, content string) (domain.Message, error)
	appended []domain.Message
}

func (m *mockConvStore) CreateConversation(context.Context, string, domain.Agent) (domain.Conversation, error) {
	return domain.Conversation{}, nil
}

func (m *mockConvStore) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.Conversation{ID: id}, nil
}

func (m *mockConvStore) ListConversations(context.Context) ([]domain.Conversation, error) {
	return nil, nil
}

func (m *mockConvStore) RenameConversation(context.Context, string, string) error { return nil }
func (m *mockConvStore) DeleteConversation(context.Context, string) error         { return nil }

func (m *mockConvStore) AppendMessage(
	ctx context.Context, conversationID string, role domain.Role, content string,
) (domain.Message, error) {
	if m.appendFn != nil {
		return m.appendFn(ctx, conversationID, role, content)
	}
	msg := domain.Message{ID: "m", Role: role, Content: content, CreatedAt: time.Now()}
	m.appended = append(m.appended, msg)
	return msg, nil
}

func (m *mockConvStore) Messages(context.Context, string) ([]domain.Message, error) {
	return m.appended, nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return m.embedFn(ctx, text)
}

type mockRetriever struct {
	retrieveFn func(ctx context.Context, vector []float32) ([]domain.Hit, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, vector []float32) ([]domain.Hit, error) {
	return m.retrieveFn(ctx, vector)
}

type mockStreamer struct {
	streamFn func(ctx context.Context, messages []domain.Message, temperature float32, maxTokens int) (domain.Stream, error)
	messages []domain.Message
}

func (m *mockStreamer) Stream(
	ctx context.Context, messages []domain.Message, temperature float32, maxTokens int,
) (domain.Stream, error) {
	m.messages = messages
	return m.streamFn(ctx, messages, temperature, maxTokens)
}

// fragmentStream yields fixed fragments then finalErr (io.EOF for a clean end).
type fragmentStream struct {
	fragments []string
	finalErr  error
	closed    bool
}

func (s *fragmentStream) Recv() (string, error) {
	if len(s.fragments) == 0 {
		return "", s.finalErr
	}
	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *fragmentStream) Close() error {
	s.closed = true
	return nil
}

func helpdeskRequest() domain.TurnRequest {
	return domain.TurnRequest{
		ConversationID: "c1",
		Agent:          domain.AgentHelpdesk,
		Query:          "how do I upgrade?",
		Temperature:    0.2,
		MaxTokens:      512,
	}
}

func newTestService(conv *mockConvStore, stream domain.Stream) (*Service, *mockStreamer) {
	embedder := &mockEmbedder{
		embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
			return domain.EmbeddingResult{Embedding: []float32{0.6, 0.8}}, nil
		},
	}
	retriever := &mockRetriever{
		retrieveFn: func(context.Context, []float32) ([]domain.Hit, error) {
			return []domain.Hit{
				domain.NewHit("docs", 0.9, 1.0, domain.Payload{URL: "https://ex/a", Section: "Upgrade", Text: "run the migrator"}),
			}, nil
		},
	}
	streamer := &mockStreamer{
		streamFn: func(context.Context, []domain.Message, float32, int) (domain.Stream, error) {
			return stream, nil
		},
	}
	return New(conv, embedder, retriever, streamer), streamer
}

func TestTurnStreamsAndPersists(t *testing.T) {
	conv := &mockConvStore{}
	stream := &fragmentStream{fragments: []string{"Run ", "the ", "migrator ", "[S1]."}, finalErr: io.EOF}
	svc, streamer := newTestService(conv, stream)

	var deltas []string
	res, err := svc.Turn(context.Background(), helpdeskRequest(), func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}

	if res.Answer != "Run the migrator [S1]." {
		t.Fatalf("answer = %q", res.Answer)
	}
	if strings.Join(deltas, "") != res.Answer {
		t.Fatalf("delta concatenation %q != answer %q", strings.Join(deltas, ""), res.Answer)
	}
	if res.Truncated {
		t.Fatal("unexpected truncation")
	}
	if len(res.Sources) != 1 || res.Sources[0].Label != "S1" {
		t.Fatalf("sources = %+v, want single S1", res.Sources)
	}

	if len(conv.appended) != 2 {
		t.Fatalf("appended %d messages, want 2", len(conv.appended))
	}
	if conv.appended[0].Role != domain.RoleUser || conv.appended[0].Content != "how do I upgrade?" {
		t.Fatalf("user message = %+v", conv.appended[0])
	}
	if conv.appended[1].Role != domain.RoleAssistant || conv.appended[1].Content != res.Answer {
		t.Fatalf("assistant message = %+v, want persisted answer", conv.appended[1])
	}
	if !stream.closed {
		t.Fatal("stream not closed")
	}

	// The helpdesk prompt is system persona + one grounded user message.
	if len(streamer.messages) != 2 || streamer.messages[0].Role != domain.RoleSystem {
		t.Fatalf("prompt = %+v", streamer.messages)
	}
	if !strings.Contains(streamer.messages[1].Content, "[S1] Upgrade") {
		t.Fatal("prompt missing grounding context")
	}
}

func TestTurnTruncationPersistsPartial(t *testing.T) {
	conv := &mockConvStore{}
	stream := &fragmentStream{fragments: []string{"partial "}, finalErr: errors.New("connection reset")}
	svc, _ := newTestService(conv, stream)

	res, err := svc.Turn(context.Background(), helpdeskRequest(), nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if res.Answer != "partial " {
		t.Fatalf("answer = %q", res.Answer)
	}
	if len(conv.appended) != 2 || conv.appended[1].Content != "partial " {
		t.Fatalf("partial answer not persisted: %+v", conv.appended)
	}
}

func TestTurnTranslateSkipsRetrieval(t *testing.T) {
	conv := &mockConvStore{}
	stream := &fragmentStream{fragments: []string{"translated"}, finalErr: io.EOF}

	embedder := &mockEmbedder{
		embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
			t.Fatal("embedder must not be called for translate agent")
			return domain.EmbeddingResult{}, nil
		},
	}
	retriever := &mockRetriever{
		retrieveFn: func(context.Context, []float32) ([]domain.Hit, error) {
			t.Fatal("retriever must not be called for translate agent")
			return nil, nil
		},
	}
	streamer := &mockStreamer{
		streamFn: func(context.Context, []domain.Message, float32, int) (domain.Stream, error) {
			return stream, nil
		},
	}
	svc := New(conv, embedder, retriever, streamer)

	req := domain.TurnRequest{
		ConversationID: "c1",
		Agent:          domain.AgentTranslate,
		Query:          "to Go please",
		Code:           "DATA out; SET in; RUN;",
		CodeLang:       "sas",
		Temperature:    0.2,
		MaxTokens:      512,
	}
	res, err := svc.Turn(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.Answer != "translated" {
		t.Fatalf("answer = %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Fatalf("translate turn produced sources: %+v", res.Sources)
	}
	if !strings.Contains(streamer.messages[1].Content, "```sas") {
		t.Fatal("prompt missing tagged code fence")
	}
	if !strings.Contains(conv.appended[0].Content, "DATA out") {
		t.Fatal("persisted user message missing the code blob")
	}
}

func TestTurnValidation(t *testing.T) {
	svc, _ := newTestService(&mockConvStore{}, &fragmentStream{finalErr: io.EOF})

	cases := []struct {
		name string
		mut  func(*domain.TurnRequest)
		want error
	}{
		{"unknown agent", func(r *domain.TurnRequest) { r.Agent = "oracle" }, domain.ErrUnknownAgent},
		{"empty query", func(r *domain.TurnRequest) { r.Query = "  " }, domain.ErrValidation},
		{"temperature out of range", func(r *domain.TurnRequest) { r.Temperature = 1.5 }, domain.ErrValidation},
		{"non-positive max tokens", func(r *domain.TurnRequest) { r.MaxTokens = 0 }, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := helpdeskRequest()
			tc.mut(&req)
			_, err := svc.Turn(context.Background(), req, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTurnConversationNotFound(t *testing.T) {
	conv := &mockConvStore{
		getFn: func(context.Context, string) (domain.Conversation, error) {
			return domain.Conversation{}, domain.ErrConversationNotFound
		},
	}
	svc, _ := newTestService(conv, &fragmentStream{finalErr: io.EOF})

	_, err := svc.Turn(context.Background(), helpdeskRequest(), nil)
	if !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("err = %v, want ErrConversationNotFound", err)
	}
}

func TestTurnEmbedErrorBeforeStream(t *testing.T) {
	conv := &mockConvStore{}
	embedder := &mockEmbedder{
		embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
			return domain.EmbeddingResult{}, domain.ErrUpstream
		},
	}
	streamer := &mockStreamer{
		streamFn: func(context.Context, []domain.Message, float32, int) (domain.Stream, error) {
			t.Fatal("streamer must not be called when embedding fails")
			return nil, nil
		},
	}
	svc := New(conv, embedder, &mockRetriever{}, streamer)

	_, err := svc.Turn(context.Background(), helpdeskRequest(), nil)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	// The user message was already persisted before the pipeline failed.
	if len(conv.appended) != 1 || conv.appended[0].Role != domain.RoleUser {
		t.Fatalf("appended = %+v, want only the user message", conv.appended)
	}
}
