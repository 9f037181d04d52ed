package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

const defaultMaxRetries = 5

// RemoteEmbedder is an OpenAI-compatible embeddings API client.
type RemoteEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	cache      *Cache

	// mu guards dimensions, which is learned lazily from the first response
	// when not configured; concurrent first calls race without it.
	mu         sync.Mutex
	dimensions int
}

// RemoteConfig configures the remote embedder. The API key is read from the
// environment variable named by APIKeyEnv.
type RemoteConfig struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimensions int
	Timeout    time.Duration
	CacheSize  int
}

// NewRemoteEmbedder creates an embeddings client using the provided configuration.
func NewRemoteEmbedder(cfg RemoteConfig) (*RemoteEmbedder, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 10000
	}
	return &RemoteEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
		maxRetries: defaultMaxRetries,
		cache:      NewCache(cacheSize),
	}, nil
}

// Embed returns the embedding for text, using cache when available.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	vectors, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	e.cache.Set(text, vectors[0])
	return vectors[0], nil
}

// EmbedBatch embeds texts in a single API call, filling cache hits locally.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			out[i] = cached
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vectors, err := e.request(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(vectors))
	}
	for i, vec := range vectors {
		out[missingIdx[i]] = vec
		e.cache.Set(missing[i], vec)
	}
	return out, nil
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// request calls the embeddings endpoint with retry and exponential backoff.
// 429 and 5xx responses are retried, honoring Retry-After when present.
func (e *RemoteEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	url := e.baseURL + "/embeddings"
	body, err := json.Marshal(embeddingsRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = err
			if waitErr := backoff(ctx, attempt, ""); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			retryAfter := resp.Header.Get("Retry-After")
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("embeddings request failed: %s", resp.Status)
			if waitErr := backoff(ctx, attempt, retryAfter); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("embeddings request failed: %s", resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			if waitErr := backoff(ctx, attempt, ""); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		var decoded embeddingsResponse
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, fmt.Errorf("decode embeddings response: %w", err)
		}
		if len(decoded.Data) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		dims := e.Dimensions()
		vectors := make([][]float32, len(decoded.Data))
		for _, d := range decoded.Data {
			if d.Index < 0 || d.Index >= len(vectors) {
				return nil, fmt.Errorf("embedding index out of range: %d", d.Index)
			}
			if dims > 0 && len(d.Embedding) != dims {
				return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(d.Embedding), dims)
			}
			vectors[d.Index] = d.Embedding
		}
		if dims == 0 && len(vectors) > 0 {
			e.mu.Lock()
			if e.dimensions == 0 {
				e.dimensions = len(vectors[0])
			}
			e.mu.Unlock()
		}
		return vectors, nil
	}
	return nil, fmt.Errorf("embeddings request exhausted retries: %w", lastErr)
}

// backoff sleeps for the retry delay, respecting ctx cancellation. retryAfter
// is the raw Retry-After header value, used when parseable.
func backoff(ctx context.Context, attempt int, retryAfter string) error {
	delay := retryDelay(attempt)
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			delay = time.Duration(secs) * time.Second
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// retryDelay returns an exponential backoff delay capped at 5s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// Dimensions returns the embedding dimension (0 until the first successful call
// when not configured).
func (e *RemoteEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// Close is a no-op for the remote embedder.
func (e *RemoteEmbedder) Close() error {
	return nil
}
