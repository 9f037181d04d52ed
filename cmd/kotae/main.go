// Package main is the Kotae server entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fingerprint"
	"github.com/hyperjump/kotae/internal/generator"
	"github.com/hyperjump/kotae/internal/history"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/prompt"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/vectorindex"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; keys may come from the real environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: kotae <command> [flags]

Commands:
  server    Start the HTTP server (upload, chat, evidence lookup)
  ingest    Ingest files or directories from the command line
  version   Print version
  help      Show this help

Run "kotae <command> -h" for command flags.`)
}

// components holds everything the server and CLI commands share.
type components struct {
	store    fingerprint.Store
	embedder embedding.Embedder
	index    vectorindex.Index
	pipeline *ingest.Pipeline
}

func (c *components) Close() {
	_ = c.index.Close()
	_ = c.embedder.Close()
	_ = c.store.Close()
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := fingerprint.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}

	embedder, err := embedding.NewRemoteEmbedder(embedding.RemoteConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKeyEnv:  cfg.Embedding.APIKeyEnv,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSecs) * time.Second,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	index := vectorindex.NewQdrant(vectorindex.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		APIKeyEnv:  cfg.Qdrant.APIKeyEnv,
		Collection: cfg.Qdrant.Collection,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
	})

	pipeline := ingest.NewPipeline(
		store,
		extract.NewExtractor(),
		chunker.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		embedder,
		index,
		ingest.WithLogger(logger),
	)

	return &components{store: store, embedder: embedder, index: index, pipeline: pipeline}, nil
}

func newHistoryStore(cfg *config.Config, logger *zap.Logger) (history.Store, error) {
	if cfg.History.Backend == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := history.NewRedisStore(ctx, cfg.History.RedisURL, time.Duration(cfg.History.TTLSecs)*time.Second)
		if err != nil {
			return nil, err
		}
		logger.Info("session history backed by redis", zap.String("url", cfg.History.RedisURL))
		return store, nil
	}
	return history.NewMemoryStore(), nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	gen, err := generator.New(generator.Config{
		Provider:    cfg.Generator.Provider,
		Model:       cfg.Generator.Model,
		BaseURL:     cfg.Generator.BaseURL,
		APIKeyEnv:   cfg.Generator.APIKeyEnv,
		TimeoutSecs: cfg.Generator.TimeoutSecs,
	})
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}
	defer gen.Close()

	hist, err := newHistoryStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create history store", zap.Error(err))
	}
	defer hist.Close()

	retriever := retrieval.NewRetriever(comps.embedder, comps.index, cfg.Chat.TopK, retrieval.WithLogger(logger))
	chatSvc := chat.NewService(
		retriever,
		prompt.NewBuilder(cfg.Chat.HistoryWindow),
		gen,
		hist,
		cfg.Chat.HistoryWindow,
		cfg.Chat.QuoteLength,
		chat.WithLogger(logger),
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		watchSvc = watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := comps.pipeline.IngestFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.New(
		server.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			MaxUploadMB:    cfg.Ingest.MaxUploadMB,
			GeneratorModel: gen.Model(),
		},
		comps.pipeline,
		chatSvc,
		comps.index,
		comps.store,
		server.WithLogger(logger),
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fmt.Println("Usage: kotae ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	ctx := context.Background()
	exitCode := 0
	for _, target := range fs.Args() {
		info, err := os.Stat(target)
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", target, err)
			exitCode = 1
			continue
		}
		if info.IsDir() {
			processed, skipped, failed, err := comps.pipeline.IngestDirectory(ctx, target, cfg.Watch.Extensions)
			if err != nil {
				fmt.Printf("Failed to ingest %s: %v\n", target, err)
				exitCode = 1
				continue
			}
			fmt.Printf("%s: %d processed, %d skipped, %d failed\n", target, processed, skipped, failed)
			if failed > 0 {
				exitCode = 1
			}
			continue
		}
		outcome, err := comps.pipeline.IngestFile(ctx, target)
		if err != nil {
			fmt.Printf("Failed to ingest %s: %v\n", target, err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s: %s (%d chunks)\n", target, outcome.Status, outcome.ChunkCount)
	}
	os.Exit(exitCode)
}
