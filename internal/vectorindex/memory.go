package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// MemoryIndex is an in-memory index using brute-force cosine search.
// Suitable for tests and small corpora without a Qdrant backend.
type MemoryIndex struct {
	dimensions int
	mu         sync.RWMutex
	chunks     map[string]models.Chunk // keyed by ref id
	vectors    map[string][]float32
}

// NewMemoryIndex creates an in-memory index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		chunks:     make(map[string]models.Chunk),
		vectors:    make(map[string][]float32),
	}, nil
}

// Upsert stores chunks and vectors, replacing existing entries with the same identity.
func (m *MemoryIndex) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, chunk := range chunks {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		id := chunk.RefID()
		m.chunks[id] = chunk
		m.vectors[id] = vec
	}
	return nil
}

// Search returns the top-k chunks by inner product (cosine for normalized vectors).
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]models.RetrievedChunk, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}
	scored := make([]models.RetrievedChunk, 0, len(m.chunks))
	for id, vec := range m.vectors {
		var dot float64
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j] * vec[j])
		}
		scored = append(scored, models.RetrievedChunk{Chunk: m.chunks[id], Score: dot})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Get fetches a chunk by identity.
func (m *MemoryIndex) Get(ctx context.Context, fingerprint string, ordinal int) (*models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunk, ok := m.chunks[models.FormatRefID(fingerprint, ordinal)]
	if !ok {
		return nil, ErrChunkNotFound
	}
	return &chunk, nil
}

// Count returns the number of stored chunks.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// Ping always succeeds for the in-memory index.
func (m *MemoryIndex) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
