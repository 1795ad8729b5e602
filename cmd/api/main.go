package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/auth"
	"github.com/miryas-ai/backend/internal/config"
	"github.com/miryas-ai/backend/internal/handler"
	"github.com/miryas-ai/backend/internal/service/llm"
	"github.com/miryas-ai/backend/internal/service/quota"
	"github.com/miryas-ai/backend/internal/service/relay"
	"github.com/miryas-ai/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file before the config reads the environment.
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	llmClient, err := llm.NewClient(llm.Config{
		APIKeys: cfg.Gemini.APIKeys,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
		Timeout: cfg.Gemini.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize upstream client", zap.Error(err))
	}

	verifier, err := auth.NewVerifier(cfg.Auth.SigningSecret)
	if err != nil {
		logger.Fatal("failed to initialize auth verifier", zap.Error(err))
	}

	ledger := quota.NewLedger(store, cfg.Relay.FreeDailyLimit, logger)
	prompt := relay.LoadSystemPrompt(cfg.Relay.SystemPromptPath)
	relayService := relay.NewService(store, llmClient, ledger, prompt, logger)

	router := handler.NewRouter(relayService, verifier, logger)
	startServer(ctx, logger, cfg.Server, router)
}

func startServer(ctx context.Context, logger *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("relay backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
