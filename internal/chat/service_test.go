package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/history"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/prompt"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/vectorindex"
)

// fakeGenerator returns a canned answer and records the prompts it saw.
type fakeGenerator struct {
	answer     *models.GroundedAnswer
	err        error
	lastSystem string
	lastUser   string
}

func (g *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (*models.GroundedAnswer, error) {
	g.lastSystem = systemPrompt
	g.lastUser = userPrompt
	if g.err != nil {
		return nil, g.err
	}
	return g.answer, nil
}

func (g *fakeGenerator) Model() string { return "fake" }
func (g *fakeGenerator) Close() error  { return nil }

func newTestService(t *testing.T, gen *fakeGenerator, texts []string) (*Service, history.Store) {
	t.Helper()
	embedder := embedding.NewMockEmbedder(16)
	index, err := vectorindex.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) > 0 {
		chunks := make([]models.Chunk, len(texts))
		for i, text := range texts {
			chunks[i] = models.Chunk{Fingerprint: "fp", Ordinal: i, Text: text, Filename: "doc.txt", Label: "doc.txt"}
		}
		vectors, err := embedder.EmbedBatch(context.Background(), texts)
		if err != nil {
			t.Fatal(err)
		}
		if err := index.Upsert(context.Background(), chunks, vectors); err != nil {
			t.Fatal(err)
		}
	}
	retriever := retrieval.NewRetriever(embedder, index, 5)
	hist := history.NewMemoryStore()
	return NewService(retriever, prompt.NewBuilder(5), gen, hist, 5, 150), hist
}

func TestService_answerWithCitations(t *testing.T) {
	gen := &fakeGenerator{answer: &models.GroundedAnswer{
		ThinkingProcess: "found it in the first chunk",
		Answer:          "The project failed.",
		CitationIDs:     []string{"fp_0"},
		IsRefusal:       false,
	}}
	s, hist := newTestService(t, gen, []string{"Project Alpha failed due to lack of budget.", "Unrelated text."})

	resp := s.Process(context.Background(), "sess", "Was Project Alpha successful?")
	if resp.IsRefusal {
		t.Fatal("unexpected refusal")
	}
	if resp.Answer != "The project failed." {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if resp.ToolUsed != models.ToolRAG {
		t.Errorf("tool_used: got %q", resp.ToolUsed)
	}
	if len(resp.Citations) != 1 {
		t.Fatalf("got %d citations", len(resp.Citations))
	}
	c := resp.Citations[0]
	if c.SourceID != "fp_0" || c.FileName != "doc.txt" {
		t.Errorf("citation: got %+v", c)
	}
	if !strings.Contains(c.Quote, "Project Alpha failed") {
		t.Errorf("quote: got %q", c.Quote)
	}

	turns, _ := hist.Recent(context.Background(), "sess", 10)
	if len(turns) != 2 {
		t.Errorf("history turns: got %d, want 2", len(turns))
	}
}

func TestService_unknownCitationIDsDropped(t *testing.T) {
	gen := &fakeGenerator{answer: &models.GroundedAnswer{
		ThinkingProcess: "x",
		Answer:          "answer",
		CitationIDs:     []string{"fp_0", "ghost_99"},
		IsRefusal:       false,
	}}
	s, _ := newTestService(t, gen, []string{"real chunk"})

	resp := s.Process(context.Background(), "sess", "q")
	if len(resp.Citations) != 1 {
		t.Fatalf("got %d citations, want 1 (ghost dropped)", len(resp.Citations))
	}
	if resp.Citations[0].SourceID != "fp_0" {
		t.Errorf("surviving citation: got %q", resp.Citations[0].SourceID)
	}
}

func TestService_refusalHasNoCitations(t *testing.T) {
	gen := &fakeGenerator{answer: &models.GroundedAnswer{
		ThinkingProcess: "nothing relevant",
		Answer:          "I cannot find that in the provided documents.",
		CitationIDs:     []string{"fp_0"}, // model cited anyway; must be ignored
		IsRefusal:       true,
	}}
	s, _ := newTestService(t, gen, []string{"some chunk"})

	resp := s.Process(context.Background(), "sess", "q")
	if !resp.IsRefusal {
		t.Fatal("expected refusal")
	}
	if len(resp.Citations) != 0 {
		t.Errorf("refusal must carry no citations, got %d", len(resp.Citations))
	}
	if resp.Citations == nil {
		t.Error("citations must be an empty slice, not nil")
	}
}

func TestService_emptyIndex(t *testing.T) {
	gen := &fakeGenerator{}
	s, hist := newTestService(t, gen, nil)

	resp := s.Process(context.Background(), "sess", "q")
	if !resp.IsRefusal {
		t.Fatal("expected refusal")
	}
	if resp.Answer != msgNoDocuments {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if gen.lastUser != "" {
		t.Error("generator should not be called when there is nothing to retrieve")
	}
	turns, _ := hist.Recent(context.Background(), "sess", 10)
	if len(turns) != 0 {
		t.Error("history should not record the no-documents path")
	}
}

func TestService_generatorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	s, _ := newTestService(t, gen, []string{"chunk"})

	resp := s.Process(context.Background(), "sess", "q")
	if !resp.IsRefusal {
		t.Fatal("expected refusal")
	}
	if !strings.HasPrefix(resp.Answer, "System Error: ") {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if len(resp.Citations) != 0 {
		t.Error("system error must carry no citations")
	}
	if resp.SessionID != "sess" {
		t.Errorf("session id: got %q", resp.SessionID)
	}
}

func TestService_historyFlowsIntoPrompt(t *testing.T) {
	gen := &fakeGenerator{answer: &models.GroundedAnswer{
		ThinkingProcess: "x",
		Answer:          "second answer",
		CitationIDs:     []string{},
	}}
	s, hist := newTestService(t, gen, []string{"chunk"})
	ctx := context.Background()

	if err := hist.Append(ctx, "sess", "first question", "first answer"); err != nil {
		t.Fatal(err)
	}
	s.Process(ctx, "sess", "second question")

	if !strings.Contains(gen.lastUser, "User: first question") {
		t.Error("previous user turn missing from prompt")
	}
	if !strings.Contains(gen.lastUser, "Assistant: first answer") {
		t.Error("previous assistant turn missing from prompt")
	}
	if !strings.Contains(gen.lastSystem, "HIERARCHY OF TRUTH") {
		t.Error("system directive missing")
	}
}

func TestReconcileCitations_quoteTruncated(t *testing.T) {
	long := strings.Repeat("a", 400)
	candidates := []models.RetrievedChunk{{
		Chunk: models.Chunk{Fingerprint: "fp", Ordinal: 0, Text: long, Filename: "doc.txt"},
	}}
	answer := &models.GroundedAnswer{Answer: "x", CitationIDs: []string{"fp_0"}}

	citations := reconcileCitations(answer, candidates, 150)
	if len(citations) != 1 {
		t.Fatalf("got %d citations", len(citations))
	}
	quote := citations[0].Quote
	if !strings.HasSuffix(quote, "...") {
		t.Errorf("quote should end with ellipsis: %q", quote)
	}
	if len(quote) > 153 {
		t.Errorf("quote too long: %d", len(quote))
	}
}

func TestReconcileCitations_pagePropagated(t *testing.T) {
	candidates := []models.RetrievedChunk{{
		Chunk: models.Chunk{Fingerprint: "fp", Ordinal: 3, Text: "page text", Filename: "report.pdf", Page: 7},
	}}
	answer := &models.GroundedAnswer{Answer: "x", CitationIDs: []string{"fp_3"}}

	citations := reconcileCitations(answer, candidates, 150)
	if len(citations) != 1 || citations[0].Page != 7 {
		t.Errorf("citations: got %+v", citations)
	}
}
