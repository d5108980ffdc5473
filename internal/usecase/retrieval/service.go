package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/logger"
	"github.com/kailas-cloud/chatdex/internal/metrics"
)

// Service fans a query vector out over the configured collections and fuses
// the per-collection results into one pruned, ranked evidence list.
type Service struct {
	searcher     Searcher
	collections  []string
	topK         int
	sourceFilter string
}

// New creates a retrieval service. collections is the ordered fan-out list;
// topK bounds each collection's result set; sourceFilter (optional) is
// applied uniformly to every collection query.
func New(searcher Searcher, collections []string, topK int, sourceFilter string) *Service {
	return &Service{
		searcher:     searcher,
		collections:  collections,
		topK:         topK,
		sourceFilter: sourceFilter,
	}
}

// Retrieve queries every collection in order, min-max normalizes each
// collection's scores, fuses, sorts, and prunes. Collections returning zero
// hits contribute nothing; a collection search failure aborts the whole
// retrieval. The returned slice is empty only when no collection returned
// any hit at all.
func (s *Service) Retrieve(ctx context.Context, vector []float32) ([]domain.Hit, error) {
	if len(s.collections) == 0 {
		return nil, fmt.Errorf("collection list is empty: %w", domain.ErrValidation)
	}

	start := time.Now()

	perCollection := make([][]domain.Hit, 0, len(s.collections))
	for _, col := range s.collections {
		hits, err := s.searcher.Search(ctx, col, vector, s.topK, s.sourceFilter)
		if err != nil {
			return nil, fmt.Errorf("search collection %s: %w", col, err)
		}
		if len(hits) == 0 {
			continue
		}
		perCollection = append(perCollection, hits)
	}

	fused := fuse(perCollection)

	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	fallback := "no"
	if len(fused) > 0 && fused[len(fused)-1].NormScore() < pruneThreshold {
		fallback = "yes"
	}
	metrics.RetrievalHits.WithLabelValues(fallback).Observe(float64(len(fused)))

	logger.FromContext(ctx).Debug("retrieval fused",
		zap.Int("collections_queried", len(s.collections)),
		zap.Int("collections_with_hits", len(perCollection)),
		zap.Int("fused_hits", len(fused)),
		zap.String("fallback", fallback),
	)

	return fused, nil
}
