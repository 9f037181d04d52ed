// Package chat orchestrates the retrieve, generate and reconcile flow for one
// question.
package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/generator"
	"github.com/hyperjump/kotae/internal/history"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/prompt"
	"github.com/hyperjump/kotae/internal/retrieval"
)

// msgNoDocuments is returned when the index holds nothing to retrieve.
const msgNoDocuments = "Error: No documents found in database. Did you upload a file?"

// Service answers questions against ingested documents. Every terminal path,
// including internal failures, produces a well-formed ChatResponse so callers
// never have to parse free-form errors.
type Service struct {
	retriever     *retrieval.Retriever
	builder       *prompt.Builder
	generator     generator.Generator
	history       history.Store
	historyWindow int
	quoteLength   int
	logger        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService wires the chat flow together. historyWindow is the number of
// trailing turns read when building a prompt; quoteLength bounds citation
// excerpts.
func NewService(retriever *retrieval.Retriever, builder *prompt.Builder, gen generator.Generator, hist history.Store, historyWindow, quoteLength int, opts ...Option) *Service {
	if historyWindow <= 0 {
		historyWindow = 5
	}
	if quoteLength <= 0 {
		quoteLength = 150
	}
	s := &Service{
		retriever:     retriever,
		builder:       builder,
		generator:     gen,
		history:       hist,
		historyWindow: historyWindow,
		quoteLength:   quoteLength,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process answers one question. Failures anywhere in the flow come back as a
// refusal response carrying a system error message, never as an error return.
func (s *Service) Process(ctx context.Context, sessionID, message string) *models.ChatResponse {
	start := time.Now()

	candidates, err := s.retriever.Retrieve(ctx, message)
	if err != nil {
		return s.systemError(sessionID, fmt.Errorf("retrieval: %w", err))
	}
	if len(candidates) == 0 {
		return &models.ChatResponse{
			Answer:    msgNoDocuments,
			Citations: []models.Citation{},
			ToolUsed:  models.ToolRAG,
			IsRefusal: true,
			SessionID: sessionID,
		}
	}

	turns, err := s.history.Recent(ctx, sessionID, s.historyWindow)
	if err != nil {
		return s.systemError(sessionID, fmt.Errorf("read history: %w", err))
	}

	answer, err := s.generator.Generate(ctx, s.builder.System(), s.builder.User(turns, candidates, message))
	if err != nil {
		return s.systemError(sessionID, fmt.Errorf("generation: %w", err))
	}

	citations := reconcileCitations(answer, candidates, s.quoteLength)

	if err := s.history.Append(ctx, sessionID, message, answer.Answer); err != nil {
		// The answer is already produced; losing one history turn is
		// preferable to failing the whole request.
		s.logger.Warn("history append failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	s.logger.Info("chat answered",
		zap.String("session_id", sessionID),
		zap.Bool("is_refusal", answer.IsRefusal),
		zap.Int("citations", len(citations)),
		zap.Duration("elapsed", time.Since(start)))

	return &models.ChatResponse{
		Answer:    answer.Answer,
		Citations: citations,
		ToolUsed:  models.ToolRAG,
		IsRefusal: answer.IsRefusal,
		SessionID: sessionID,
	}
}

func (s *Service) systemError(sessionID string, err error) *models.ChatResponse {
	s.logger.Error("chat flow failed", zap.String("session_id", sessionID), zap.Error(err))
	return &models.ChatResponse{
		Answer:    fmt.Sprintf("System Error: %v", err),
		Citations: []models.Citation{},
		ToolUsed:  models.ToolRAG,
		IsRefusal: true,
		SessionID: sessionID,
	}
}
