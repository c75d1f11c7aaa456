package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// HTTP calls an external rerank service. The request carries the query and
// the raw candidate texts; the response maps candidate indices to scores.
type HTTP struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
}

type httpRerankRequest struct {
	Model          string   `json:"model,omitempty"`
	Query          string   `json:"query"`
	Documents      []string `json:"documents"`
	TopN           int      `json:"top_n,omitempty"`
	ScoreThreshold float64  `json:"score_threshold,omitempty"`
}

// httpRerankResult accepts both field names used by common rerank services.
type httpRerankResult struct {
	Index          int      `json:"index"`
	Score          *float64 `json:"score"`
	RelevanceScore *float64 `json:"relevance_score"`
}

type httpRerankResponse struct {
	Results []httpRerankResult `json:"results"`
}

// NewHTTP creates an HTTP reranker. A missing base URL is a configuration
// error and fails at construction.
func NewHTTP(cfg Config) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank: http reranker base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTP{
		client:  &http.Client{},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

func (r *HTTP) Rerank(ctx context.Context, query string, documents []string, threshold float64, topN int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(httpRerankRequest{
		Model:          r.model,
		Query:          query,
		Documents:      documents,
		TopN:           topN,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: encode request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rerank: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	httpResp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: call rerank service: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, fmt.Errorf("rerank: service returned %d: %s", httpResp.StatusCode, string(raw))
	}

	var resp httpRerankResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}

	results := make([]Result, 0, len(resp.Results))
	for _, item := range resp.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			return nil, fmt.Errorf("rerank: result index %d out of range", item.Index)
		}
		var score float64
		switch {
		case item.Score != nil:
			score = *item.Score
		case item.RelevanceScore != nil:
			score = *item.RelevanceScore
		default:
			return nil, fmt.Errorf("rerank: result for index %d carries no score", item.Index)
		}
		if score < threshold {
			continue
		}
		results = append(results, Result{Index: item.Index, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

var _ Reranker = (*HTTP)(nil)
