// Package integration provides end-to-end tests (requires real storage).
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fingerprint"
	"github.com/hyperjump/kotae/internal/generator"
	"github.com/hyperjump/kotae/internal/history"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/prompt"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/vectorindex"
)

// grounded fakes an Ollama chat endpoint that cites the first source id it
// finds in the prompt.
func grounded(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		citation := ""
		for _, m := range req.Messages {
			if idx := strings.Index(m.Content, "--- Source ID: "); idx >= 0 {
				rest := m.Content[idx+len("--- Source ID: "):]
				citation = rest[:strings.Index(rest, " ---")]
				break
			}
		}
		answer := models.GroundedAnswer{
			ThinkingProcess: "the retrieved chunk states the project failed",
			Answer:          "No, Project Alpha was not successful; it failed due to lack of budget.",
			CitationIDs:     []string{citation},
			IsRefusal:       false,
		}
		data, _ := json.Marshal(answer)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": string(data)},
		})
	}))
}

func TestIntegration_ingestAndChat(t *testing.T) {
	dir := t.TempDir()

	store, err := fingerprint.NewSQLiteStore(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewMockEmbedder(16)
	defer embedder.Close()

	index, err := vectorindex.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	defer index.Close()

	pipeline := ingest.NewPipeline(store, extract.NewExtractor(), chunker.NewChunker(1000, 200), embedder, index)
	ctx := context.Background()

	content := []byte("Project Alpha failed due to lack of budget.")
	outcome, err := pipeline.IngestBytes(ctx, content, "report.txt", "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != models.IngestProcessed || outcome.ChunkCount < 1 {
		t.Fatalf("ingest outcome: %+v", outcome)
	}

	// Identical bytes must short-circuit.
	second, err := pipeline.IngestBytes(ctx, content, "report-copy.txt", "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != models.IngestSkipped {
		t.Fatalf("duplicate outcome: %+v", second)
	}

	srv := grounded(t)
	defer srv.Close()
	gen, err := generator.New(generator.Config{Provider: "ollama", Model: "test-model", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Close()

	retriever := retrieval.NewRetriever(embedder, index, 5)
	svc := chat.NewService(retriever, prompt.NewBuilder(5), gen, history.NewMemoryStore(), 5, 150)

	resp := svc.Process(ctx, "sess-1", "Was Project Alpha successful?")
	if resp.IsRefusal {
		t.Fatalf("unexpected refusal: %q", resp.Answer)
	}
	if len(resp.Citations) != 1 {
		t.Fatalf("citations: got %+v", resp.Citations)
	}
	want := fmt.Sprintf("%s_0", outcome.Fingerprint)
	if resp.Citations[0].SourceID != want {
		t.Errorf("citation id: got %q, want %q", resp.Citations[0].SourceID, want)
	}
	if resp.Citations[0].FileName != "report.txt" {
		t.Errorf("citation filename: got %q", resp.Citations[0].FileName)
	}
}
