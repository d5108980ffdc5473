package retrieval

import (
	"context"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// Searcher runs a top-k nearest-neighbor query against one collection of the
// vector backend. Returned hits carry raw backend scores only.
type Searcher interface {
	Search(
		ctx context.Context, collection string, vector []float32, limit int, sourceFilter string,
	) ([]domain.Hit, error)
}
