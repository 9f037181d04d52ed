package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_appliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Ingest.ChunkSize != 1000 || cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("default chunking: got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Chat.TopK != 5 || cfg.Chat.HistoryWindow != 5 {
		t.Errorf("default chat: got top_k=%d window=%d", cfg.Chat.TopK, cfg.Chat.HistoryWindow)
	}
	if cfg.History.Backend != "memory" {
		t.Errorf("default history backend: got %q", cfg.History.Backend)
	}
	if cfg.Qdrant.Collection == "" {
		t.Error("default qdrant collection should be set")
	}
}

func TestLoad_overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  host: 0.0.0.0
  port: 9090
ingest:
  chunk_size: 512
  chunk_overlap: 64
chat:
  top_k: 3
history:
  backend: redis
  redis_url: redis://localhost:6379/0
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server override: got %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Ingest.ChunkSize != 512 || cfg.Ingest.ChunkOverlap != 64 {
		t.Errorf("ingest override: got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Chat.TopK != 3 {
		t.Errorf("chat override: got %d", cfg.Chat.TopK)
	}
	if cfg.History.Backend != "redis" || cfg.History.RedisURL == "" {
		t.Errorf("history override: got %q %q", cfg.History.Backend, cfg.History.RedisURL)
	}
}

func TestLoad_expandsRelativeDatabasePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "storage:\n  database_path: ./data/history.db\n"
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database path not absolute: %q", cfg.Storage.DatabasePath)
	}
	if filepath.Dir(filepath.Dir(cfg.Storage.DatabasePath)) != dir {
		t.Errorf("database path not relative to config dir: %q", cfg.Storage.DatabasePath)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Watch.Directories = []string{"/tmp/inbox"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Watch.Directories) != 1 || loaded.Watch.Directories[0] != "/tmp/inbox" {
		t.Errorf("watch dirs did not round-trip: %v", loaded.Watch.Directories)
	}
}
