package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

func init() {
	Register("gemini", func(cfg Config) (Generator, error) { return NewGemini(cfg) })
}

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini calls the Google Generative Language API with a JSON response schema
// so the model output is constrained to the grounded answer shape.
type Gemini struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGemini creates a Gemini generator. The API key is read from the
// environment variable named by cfg.APIKeyEnv and must be set.
func NewGemini(cfg Config) (*Gemini, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("generator API key not set: environment variable %s is empty", cfg.APIKeyEnv)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Gemini{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// answerSchema constrains the model output to the four mandatory fields.
var answerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"thinking_process": map[string]any{"type": "string"},
		"answer":           map[string]any{"type": "string"},
		"citation_ids": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"is_refusal": map[string]any{"type": "boolean"},
	},
	"required": []string{"thinking_process", "answer", "citation_ids", "is_refusal"},
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"response_mime_type"`
	ResponseSchema   any     `json:"response_schema"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt and decodes the structured answer. The low
// temperature keeps citation ids stable across runs.
func (g *Gemini) Generate(ctx context.Context, systemPrompt, userPrompt string) (*models.GroundedAnswer, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userPrompt}}}},
		GenerationConfig: geminiGenConfig{
			Temperature:      0.1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   answerSchema,
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gemini request: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response has no candidates")
	}
	return decodeAnswer(parsed.Candidates[0].Content.Parts[0].Text)
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

// Close is a no-op.
func (g *Gemini) Close() error { return nil }
