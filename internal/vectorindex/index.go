// Package vectorindex provides chunk storage and similarity search over a
// vector database. The index is the system of record for chunk text; only
// fingerprints live in local storage.
package vectorindex

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrChunkNotFound is returned by Get when no chunk exists for the requested
// (fingerprint, ordinal) pair.
var ErrChunkNotFound = errors.New("chunk not found")

// Index stores embedded chunks and serves cosine similarity search.
type Index interface {
	// Upsert writes chunks with their vectors as one batch. A failure means
	// the whole batch must be treated as not ingested.
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	// Search returns up to k chunks ranked most-similar first. An empty result
	// is the "no evidence available" condition, not an error.
	Search(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error)
	// Get fetches a single chunk by identity. Returns ErrChunkNotFound if absent.
	Get(ctx context.Context, fingerprint string, ordinal int) (*models.Chunk, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	// Ping reports backend connectivity for health checks.
	Ping(ctx context.Context) error
	Close() error
}
