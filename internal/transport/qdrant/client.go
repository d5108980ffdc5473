// Package qdrant is a minimal HTTP client for the Qdrant points search API.
// It covers exactly what retrieval needs: a top-k nearest-neighbor query per
// collection with an optional exact-match payload filter.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/metrics"
)

// Client talks to a Qdrant instance over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds Qdrant connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a Qdrant search client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// scoredPoint is one raw search hit on the wire. The score is on the
// backend's own scale and is not comparable across collections.
type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload domain.Payload `json:"payload"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
	Filter      *filter   `json:"filter,omitempty"`
}

type filter struct {
	Must []fieldCondition `json:"must"`
}

type fieldCondition struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type matchValue struct {
	Value string `json:"value"`
}

type searchResponse struct {
	Result []scoredPoint `json:"result"`
}

// Search runs a top-k nearest-neighbor query against one collection and
// returns hits carrying the backend's raw scores (normalized score zero).
// When sourceFilter is non-empty the query is constrained to points whose
// "source" payload field matches it exactly. Non-2xx and malformed responses
// map to domain.ErrUpstream.
func (c *Client) Search(
	ctx context.Context, collection string, vector []float32, limit int, sourceFilter string,
) ([]domain.Hit, error) {
	req := searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
		WithVector:  false,
	}
	if sourceFilter != "" {
		req.Filter = &filter{
			Must: []fieldCondition{{Key: "source", Match: matchValue{Value: sourceFilter}}},
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RetrievalSearchesTotal.WithLabelValues(collection, "error").Inc()
		return nil, fmt.Errorf("search %s: %v: %w", collection, err, domain.ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RetrievalSearchesTotal.WithLabelValues(collection, "error").Inc()
		return nil, fmt.Errorf("read search response %s: %v: %w", collection, err, domain.ErrUpstream)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RetrievalSearchesTotal.WithLabelValues(collection, "error").Inc()
		c.logger.Warn("qdrant search failed",
			zap.String("collection", collection),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("search %s: status %d: %s: %w",
			collection, resp.StatusCode, truncate(string(respBody), 200), domain.ErrUpstream)
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.RetrievalSearchesTotal.WithLabelValues(collection, "error").Inc()
		return nil, fmt.Errorf("parse search response %s: %v: %w", collection, err, domain.ErrUpstream)
	}

	metrics.RetrievalSearchesTotal.WithLabelValues(collection, "success").Inc()

	hits := make([]domain.Hit, 0, len(parsed.Result))
	for _, p := range parsed.Result {
		hits = append(hits, domain.NewHit(collection, p.Score, 0, p.Payload))
	}
	return hits, nil
}

// HealthCheck probes the instance root endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
