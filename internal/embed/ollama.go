package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultOllamaHost is used when the config carries no base URL.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaEmbedder generates embeddings through Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	host      string
	model     string
	batchSize int
	timeout   time.Duration
	retry     RetryConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an Ollama embedder. No network call is made
// until the first request; dimensions are detected from the first response
// when not configured.
func NewOllamaEmbedder(cfg Config) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embed: ollama model name is required")
	}
	host := cfg.BaseURL
	if host == "" {
		host = DefaultOllamaHost
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}
	return &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		host:      strings.TrimRight(host, "/"),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		retry:     retry,
		dims:      cfg.Dimensions,
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed: ollama returned no embedding")
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embed: embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}

	e.mu.Lock()
	if e.dims == 0 && len(out) > 0 {
		e.dims = len(out[0])
	}
	e.mu.Unlock()
	return out, nil
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embed: encode request: %w", err)
	}

	var resp ollamaEmbedResponse
	err = WithRetry(ctx, e.retry, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("embed: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("embed: call ollama: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
			return fmt.Errorf("embed: ollama returned %d: %s", httpResp.StatusCode, string(raw))
		}
		return json.NewDecoder(httpResp.Body).Decode(&resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *OllamaEmbedder) ModelName() string { return e.model }

// Available checks that the Ollama server answers /api/tags.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
