package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kt34/ai-notes/internal/auth"
	"github.com/kt34/ai-notes/internal/backup"
	"github.com/kt34/ai-notes/internal/config"
	"github.com/kt34/ai-notes/internal/llm"
	"github.com/kt34/ai-notes/internal/logging"
	"github.com/kt34/ai-notes/internal/server"
	"github.com/kt34/ai-notes/internal/session"
	"github.com/kt34/ai-notes/internal/storage"
	"github.com/kt34/ai-notes/internal/stt"
	"github.com/kt34/ai-notes/internal/summarize"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ai-notes: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.WithComponent("main")
	for _, warning := range warnings {
		log.Warn().Msg(warning)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, sqlitePath, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer func() { _ = store.Close() }()

	provider, modelName, err := llm.ParseModel(cfg.Model)
	if err != nil {
		return fmt.Errorf("parse model: %w", err)
	}
	llmClient, err := llm.NewClient(provider, apiKeyFor(provider, cfg), modelName)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	summarizer := summarize.New(llmClient,
		summarize.WithSectionWords(cfg.SectionWords),
		summarize.WithCallTimeout(cfg.ParsedLLMTimeout()),
	)

	stt.InitProvider()
	factory := stt.DeepgramFactory(cfg.DeepgramAPIKey)

	verifier := auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseServiceKey)

	orchestrator := session.NewOrchestrator(session.Options{
		Verifier:       verifier,
		Store:          store,
		Summarizer:     summarizer,
		NewAdapter:     func() session.SpeechAdapter { return stt.NewAdapter(factory) },
		ReadTimeout:    cfg.ParsedReadTimeout(),
		SessionTimeout: cfg.ParsedSessionTimeout(),
	})

	if cfg.GDriveFolderID != "" && sqlitePath != "" {
		uploader, err := backup.NewUploader(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID, sqlitePath)
		if err != nil {
			log.Warn().Err(err).Msg("database backup disabled")
		} else {
			go uploader.Run(ctx, time.Hour)
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(verifier, store, orchestrator).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	return nil
}

// openStore builds the configured storage backend. The sqlite file path is
// returned when applicable so the backup uploader knows what to ship.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, string, error) {
	if cfg.StorageBackend == "postgres" && cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, "", err
	}
	return store, store.Path(), nil
}

func apiKeyFor(provider string, cfg config.Config) string {
	switch provider {
	case "anthropic":
		return cfg.AnthropicAPIKey
	case "gemini":
		return cfg.GeminiAPIKey
	default:
		return cfg.OpenAIAPIKey
	}
}
