// Package ingest runs documents through the extraction, chunking, embedding
// and indexing pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fingerprint"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorindex"
)

// ErrNoText is returned when extraction yields no usable text. The document is
// not registered, so a corrected re-upload of the same bytes is still refused
// only if it actually succeeded before.
var ErrNoText = errors.New("document contains no extractable text")

// Pipeline ingests documents. The fingerprint is registered only after the
// chunks are durably indexed, so a failed ingestion leaves no bookkeeping
// behind and the upload can simply be retried.
type Pipeline struct {
	store     fingerprint.Store
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	index     vectorindex.Index
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline wires the ingestion stages together.
func NewPipeline(store fingerprint.Store, extractor *extract.Extractor, ch *chunker.Chunker, embedder embedding.Embedder, index vectorindex.Index, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		index:     index,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestBytes runs raw document bytes through the full pipeline. Duplicate
// content is detected by fingerprint before any expensive work happens.
func (p *Pipeline) IngestBytes(ctx context.Context, content []byte, filename, contentType string) (*models.IngestionOutcome, error) {
	start := time.Now()
	fp := fingerprint.Fingerprint(content)

	exists, err := p.store.Exists(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("check fingerprint: %w", err)
	}
	if exists {
		p.logger.Info("duplicate document skipped",
			zap.String("filename", filename),
			zap.String("fingerprint", fp))
		return &models.IngestionOutcome{Status: models.IngestSkipped, Fingerprint: fp}, nil
	}

	res, err := p.extractor.Extract(content, filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	if res.Empty() {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoText)
	}

	chunks := p.chunker.ChunkDocument(fp, filename, res)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoText)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", filename, err)
	}

	if err := p.index.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("index %s: %w", filename, err)
	}

	// Register last: a fingerprint on record promises the chunks are
	// searchable. A concurrent ingest of the same bytes may have won the
	// race; the index upsert is idempotent so that is a benign skip.
	if err := p.store.Register(ctx, fp, filename); err != nil {
		if errors.Is(err, fingerprint.ErrAlreadyExists) {
			return &models.IngestionOutcome{Status: models.IngestSkipped, Fingerprint: fp}, nil
		}
		return nil, fmt.Errorf("register fingerprint: %w", err)
	}

	p.logger.Info("document ingested",
		zap.String("filename", filename),
		zap.String("fingerprint", fp),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(start)))

	return &models.IngestionOutcome{
		Status:      models.IngestProcessed,
		Fingerprint: fp,
		ChunkCount:  len(chunks),
	}, nil
}

// IngestFile reads and ingests a single file from disk.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*models.IngestionOutcome, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.IngestBytes(ctx, content, filepath.Base(path), "")
}

// IngestDirectory walks dir and ingests every file whose extension is in
// extensions (lowercase, with leading dot). Individual file failures are
// logged and counted but do not stop the walk.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string, extensions []string) (processed, skipped, failed int, err error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}
	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		outcome, err := p.IngestFile(ctx, path)
		if err != nil {
			p.logger.Warn("ingestion failed", zap.String("path", path), zap.Error(err))
			failed++
			return nil
		}
		if outcome.Status == models.IngestSkipped {
			skipped++
		} else {
			processed++
		}
		return nil
	})
	if walkErr != nil {
		return processed, skipped, failed, fmt.Errorf("walk %s: %w", dir, walkErr)
	}
	return processed, skipped, failed, nil
}
