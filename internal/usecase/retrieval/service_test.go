package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

type mockSearcher struct {
	searchFn func(ctx context.Context, collection string, vector []float32, limit int, sourceFilter string) ([]domain.Hit, error)
	calls    []string
}

func (m *mockSearcher) Search(
	ctx context.Context, collection string, vector []float32, limit int, sourceFilter string,
) ([]domain.Hit, error) {
	m.calls = append(m.calls, collection)
	return m.searchFn(ctx, collection, vector, limit, sourceFilter)
}

func TestServiceRetrieveFanOut(t *testing.T) {
	results := map[string][]float64{
		"a": {0.9, 0.5},
		"b": {0.6},
		"c": {},
	}
	searcher := &mockSearcher{
		searchFn: func(_ context.Context, collection string, _ []float32, limit int, filter string) ([]domain.Hit, error) {
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			if filter != "docs" {
				t.Errorf("sourceFilter = %q, want docs", filter)
			}
			return hitsFromRaw(collection, results[collection]...), nil
		},
	}

	svc := New(searcher, []string{"a", "b", "c"}, 5, "docs")
	fused, err := svc.Retrieve(context.Background(), []float32{0.1, 0.2})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if want := []string{"a", "b", "c"}; len(searcher.calls) != 3 ||
		searcher.calls[0] != want[0] || searcher.calls[1] != want[1] || searcher.calls[2] != want[2] {
		t.Fatalf("collections queried = %v, want %v", searcher.calls, want)
	}
	if len(fused) != 1 || fused[0].Collection() != "a" || fused[0].RawScore() != 0.9 {
		t.Fatalf("fused = %v, want single a/0.9 hit", fused)
	}
}

func TestServiceRetrieveEmptyCollections(t *testing.T) {
	svc := New(&mockSearcher{}, nil, 5, "")

	_, err := svc.Retrieve(context.Background(), []float32{0.1})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestServiceRetrieveSearchFailureAborts(t *testing.T) {
	searcher := &mockSearcher{
		searchFn: func(_ context.Context, collection string, _ []float32, _ int, _ string) ([]domain.Hit, error) {
			if collection == "b" {
				return nil, domain.ErrUpstream
			}
			return hitsFromRaw(collection, 0.9), nil
		},
	}

	svc := New(searcher, []string{"a", "b", "c"}, 5, "")
	_, err := svc.Retrieve(context.Background(), []float32{0.1})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestServiceRetrieveAllEmpty(t *testing.T) {
	searcher := &mockSearcher{
		searchFn: func(context.Context, string, []float32, int, string) ([]domain.Hit, error) {
			return nil, nil
		},
	}

	svc := New(searcher, []string{"a", "b"}, 5, "")
	fused, err := svc.Retrieve(context.Background(), []float32{0.1})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(fused) != 0 {
		t.Fatalf("fused = %d hits, want 0", len(fused))
	}
}
