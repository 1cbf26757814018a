package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/config"
	"github.com/threadline-ai/threadline-engine/pkg/database"
	"github.com/threadline-ai/threadline-engine/pkg/handlers"
	"github.com/threadline-ai/threadline-engine/pkg/llm"
	"github.com/threadline-ai/threadline-engine/pkg/middleware"
	"github.com/threadline-ai/threadline-engine/pkg/relay"
	"github.com/threadline-ai/threadline-engine/pkg/repositories"
	"github.com/threadline-ai/threadline-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("upstream_provider", cfg.Upstream.Provider),
		zap.String("database", cfg.Database.Database))

	if err := database.RunMigrations(cfg.Database.URL(), logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	provider, err := relay.NewProvider(&relay.Config{
		Provider:  cfg.Upstream.Provider,
		APIKey:    cfg.Upstream.APIKey,
		BaseURL:   cfg.Upstream.BaseURL,
		MaxTokens: cfg.Upstream.MaxTokens,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to configure upstream provider", zap.Error(err))
	}

	// The turn pipeline consumes the relay through the same wire format as
	// the SPA; by default it loops back to this process.
	relayURL := cfg.Chat.RelayURL
	if relayURL == "" {
		relayURL = "http://127.0.0.1:" + cfg.Port
	}
	streamClient, err := llm.NewStreamClient(&llm.StreamClientConfig{
		BaseURL:         relayURL,
		ReasoningEffort: cfg.Chat.ReasoningEffort,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create stream client", zap.Error(err))
	}

	conversationRepo := repositories.NewConversationRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	profileRepo := repositories.NewProfileRepository(db)

	extractor := services.NewMemoryExtractor(streamClient, cfg.Chat.EnrichmentModel, logger)
	summarizer := services.NewSummarizer(streamClient, conversationRepo, cfg.Chat.EnrichmentModel, cfg.Chat.SummaryMaxChars, logger)
	chatService := services.NewChatService(
		conversationRepo, projectRepo, profileRepo,
		streamClient, extractor, summarizer,
		services.ChatOptions{
			DefaultModel:       cfg.Chat.DefaultModel,
			MaxHistoryMessages: cfg.Chat.MaxHistoryMessages,
			MaxContextTokens:   cfg.Chat.MaxContextTokens,
			EnrichmentTimeout:  time.Duration(cfg.Chat.EnrichmentTimeoutSeconds) * time.Second,
		},
		logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewRelayHandler(provider, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chatService, logger).RegisterRoutes(mux)

	var root http.Handler = mux
	if cfg.Env == "local" {
		root = middleware.RequestLogger(logger.Named("http"))(mux)
	}

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting threadline-engine", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, root); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
