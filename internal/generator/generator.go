// Package generator produces structured grounded answers from an LLM provider.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// Generator turns a fully-built prompt into a structured grounded answer.
// A malformed or empty model response is a hard error; callers must not
// degrade it into a partial answer.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (*models.GroundedAnswer, error)
	Model() string
	Close() error
}

// Factory constructs a Generator from provider settings.
type Factory func(cfg Config) (Generator, error)

// Config carries provider-agnostic generator settings.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKeyEnv   string
	TimeoutSecs int
}

var registry = map[string]Factory{}

// Register adds a provider factory. Called from provider init functions.
func Register(name string, f Factory) {
	registry[name] = f
}

// New constructs the Generator named by cfg.Provider.
func New(cfg Config) (Generator, error) {
	factory, ok := registry[cfg.Provider]
	if !ok {
		names := make([]string, 0, len(registry))
		for name := range registry {
			names = append(names, name)
		}
		return nil, fmt.Errorf("unknown generator provider %q (available: %s)", cfg.Provider, strings.Join(names, ", "))
	}
	return factory(cfg)
}

// decodeAnswer parses the model's JSON output into a GroundedAnswer and
// enforces the structured output contract.
func decodeAnswer(raw string) (*models.GroundedAnswer, error) {
	text := stripFences(raw)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty model response")
	}
	var answer models.GroundedAnswer
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}
	if answer.Answer == "" {
		return nil, fmt.Errorf("model response missing answer field")
	}
	if answer.CitationIDs == nil {
		answer.CitationIDs = []string{}
	}
	return &answer, nil
}

// stripFences removes a surrounding markdown code fence if present. Some
// providers wrap JSON output in ```json fences despite being asked not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
