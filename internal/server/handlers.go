package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorindex"
)

// chunkNotFound is the sentinel body for evidence lookups that miss. The
// endpoint always answers 200 so evidence display degrades gracefully.
const chunkNotFound = "Chunk not found"

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// handleIngest accepts a multipart upload under the "file" field and runs it
// through the ingestion pipeline.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart request: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("read upload: %v", err))
		return
	}

	outcome, err := s.pipeline.IngestBytes(r.Context(), content, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("ingestion failed: %v", err))
		return
	}

	resp := models.IngestionResponse{
		Status: outcome.Status,
		Data: &models.DocumentMetadata{
			Filename:    header.Filename,
			ContentHash: outcome.Fingerprint,
			UploadDate:  time.Now().UTC(),
			DocID:       outcome.Fingerprint,
			ChunkCount:  outcome.ChunkCount,
		},
	}
	switch outcome.Status {
	case models.IngestSkipped:
		resp.Message = fmt.Sprintf("Document '%s' already exists. Skipping ingestion.", header.Filename)
	default:
		resp.Message = "Document processed and indexed successfully."
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleChat answers one question. The chat service never returns an error;
// failures arrive as refusal responses, so this handler only ever answers 200
// for well-formed requests.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if req.SessionID == "" {
		s.respondError(w, http.StatusBadRequest, "session_id must not be empty")
		return
	}
	resp := s.chat.Process(r.Context(), req.SessionID, req.Message)
	s.respondJSON(w, http.StatusOK, resp)
}

// handleGetChunk looks up one chunk by document id and ordinal. Misses return
// a sentinel content string with status 200, never an error status.
func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "doc_id")
	ordinal, err := strconv.Atoi(chi.URLParam(r, "chunk_index"))

	body := map[string]any{
		"doc_id":      docID,
		"chunk_index": chi.URLParam(r, "chunk_index"),
		"content":     chunkNotFound,
	}
	if err != nil {
		s.respondJSON(w, http.StatusOK, body)
		return
	}
	body["chunk_index"] = ordinal

	chunk, err := s.index.Get(r.Context(), docID, ordinal)
	if err != nil {
		if !errors.Is(err, vectorindex.ErrChunkNotFound) {
			s.logger.Warn("chunk lookup failed", zap.String("doc_id", docID), zap.Int("ordinal", ordinal), zap.Error(err))
		}
		s.respondJSON(w, http.StatusOK, body)
		return
	}
	body["content"] = chunk.Text
	s.respondJSON(w, http.StatusOK, body)
}

// handleHealth reports liveness plus best-effort backend connectivity. A dead
// index backend shows up as a status string; the endpoint itself always
// answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	indexStatus := "connected"
	if err := s.index.Ping(r.Context()); err != nil {
		indexStatus = fmt.Sprintf("disconnected: %v", err)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "kotae",
		"components": map[string]string{
			"index":     indexStatus,
			"generator": s.generatorModel,
		},
	})
}

// handleStatus reports corpus counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	documents, err := s.store.Count(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("count documents: %v", err))
		return
	}
	chunks, err := s.index.Count(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("count chunks: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"documents": documents,
		"chunks":    chunks,
	})
}
