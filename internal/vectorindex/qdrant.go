package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/models"
)

// Qdrant is a minimal REST client to a Qdrant collection using cosine distance.
// The collection is created lazily on first use so a briefly unavailable
// backend does not fail process startup.
type Qdrant struct {
	url        string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client

	// mu guards the initialize-once collection gate. ready stays false after a
	// failed attempt so the next caller retries.
	mu    sync.Mutex
	ready bool
}

// QdrantConfig configures the Qdrant client. The API key (optional) is read
// from the environment variable named by APIKeyEnv.
type QdrantConfig struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

// NewQdrant creates a Qdrant client. No network call is made until first use.
func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Qdrant{
		url:        cfg.URL,
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}
}

// pointID returns the deterministic Qdrant point id for a chunk identity.
// Qdrant requires UUID (or integer) ids, so the citation ref id is mapped
// through a name-based UUID; the ref id itself rides in the payload.
func pointID(fingerprint string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("kotae:"+models.FormatRefID(fingerprint, ordinal))).String()
}

// ensureReady creates the collection if it does not exist. Safe for concurrent
// first use; a failure leaves the gate open for the next caller to retry.
func (q *Qdrant) ensureReady(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ready {
		return nil
	}

	status, err := q.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", q.url, q.collection), nil, nil)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if status == http.StatusNotFound {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     q.dimensions,
				"distance": "Cosine",
			},
		}
		status, err = q.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", q.url, q.collection), body, nil)
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		if status >= 300 {
			return fmt.Errorf("create collection: status %d", status)
		}
	} else if status >= 300 {
		return fmt.Errorf("check collection: status %d", status)
	}
	q.ready = true
	return nil
}

type qdrantPayload struct {
	Fingerprint string `json:"fingerprint"`
	Ordinal     int    `json:"ordinal"`
	Text        string `json:"text"`
	Filename    string `json:"filename"`
	Page        int    `json:"page"`
	Label       string `json:"label"`
}

func payloadFromChunk(c *models.Chunk) qdrantPayload {
	return qdrantPayload{
		Fingerprint: c.Fingerprint,
		Ordinal:     c.Ordinal,
		Text:        c.Text,
		Filename:    c.Filename,
		Page:        c.Page,
		Label:       c.Label,
	}
}

func (p *qdrantPayload) chunk() models.Chunk {
	return models.Chunk{
		Fingerprint: p.Fingerprint,
		Ordinal:     p.Ordinal,
		Text:        p.Text,
		Filename:    p.Filename,
		Page:        p.Page,
		Label:       p.Label,
	}
}

// Upsert writes chunks with their vectors as a single batch with wait=true so
// a success response means the points are durably applied.
func (q *Qdrant) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if err := q.ensureReady(ctx); err != nil {
		return err
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":      pointID(chunks[i].Fingerprint, chunks[i].Ordinal),
			"vector":  vectors[i],
			"payload": payloadFromChunk(&chunks[i]),
		}
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.url, q.collection)
	status, err := q.do(ctx, http.MethodPut, url, body, nil)
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert: status %d", status)
	}
	return nil
}

// Search returns the top-k chunks by cosine similarity, most-similar first.
func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error) {
	if k <= 0 {
		k = 5
	}
	if err := q.ensureReady(ctx); err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection)
	status, err := q.do(ctx, http.MethodPost, url, req, &resp)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant search: status %d", status)
	}
	results := make([]models.RetrievedChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, models.RetrievedChunk{Chunk: r.Payload.chunk(), Score: r.Score})
	}
	return results, nil
}

// Get fetches one chunk by identity via its deterministic point id.
func (q *Qdrant) Get(ctx context.Context, fingerprint string, ordinal int) (*models.Chunk, error) {
	if err := q.ensureReady(ctx); err != nil {
		return nil, err
	}
	req := map[string]any{
		"ids":          []string{pointID(fingerprint, ordinal)},
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points", q.url, q.collection)
	status, err := q.do(ctx, http.MethodPost, url, req, &resp)
	if err != nil {
		return nil, fmt.Errorf("qdrant get: %w", err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant get: status %d", status)
	}
	if len(resp.Result) == 0 {
		return nil, ErrChunkNotFound
	}
	chunk := resp.Result[0].Payload.chunk()
	return &chunk, nil
}

// Count returns the exact number of stored chunks.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	if err := q.ensureReady(ctx); err != nil {
		return 0, err
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", q.url, q.collection)
	status, err := q.do(ctx, http.MethodPost, url, map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	if status >= 300 {
		return 0, fmt.Errorf("qdrant count: status %d", status)
	}
	return resp.Result.Count, nil
}

// Ping checks backend connectivity without requiring the collection to exist.
func (q *Qdrant) Ping(ctx context.Context) error {
	status, err := q.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections", q.url), nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant ping: status %d", status)
	}
	return nil
}

// Close is a no-op; the client holds no persistent connections.
func (q *Qdrant) Close() error {
	return nil
}

// do sends a JSON request and optionally decodes a JSON response into out.
// Returns the HTTP status code; transport errors are returned as err.
func (q *Qdrant) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
