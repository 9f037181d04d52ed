// Package retrieval finds the chunks most relevant to a question.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorindex"
)

// Retriever embeds a question and searches the index for similar chunks.
type Retriever struct {
	embedder embedding.Embedder
	index    vectorindex.Index
	topK     int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a Retriever. A non-positive topK defaults to 5.
func NewRetriever(embedder embedding.Embedder, index vectorindex.Index, topK int, opts ...Option) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	r := &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK chunks ranked most-similar first. An empty
// result means no evidence is available for the question; it is not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.RetrievedChunk, error) {
	start := time.Now()
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := r.index.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	r.logger.Debug("retrieval complete",
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}
