package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/noteum-io/noteum/pkg/auth"
	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/embedding"
	"github.com/noteum-io/noteum/pkg/index"
	"github.com/noteum-io/noteum/pkg/llms"
	"github.com/noteum-io/noteum/pkg/metrics"
	"github.com/noteum-io/noteum/pkg/notes"
	"github.com/noteum-io/noteum/pkg/oauth"
	"github.com/noteum-io/noteum/pkg/observability"
	"github.com/noteum-io/noteum/pkg/prompts"
	"github.com/noteum-io/noteum/pkg/quality"
	"github.com/noteum-io/noteum/pkg/search"
	"github.com/noteum-io/noteum/pkg/server"
	"github.com/noteum-io/noteum/pkg/vector"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Watch bool `help:"Watch the config and settings files for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for serve")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	_ = config.LoadDotEnvForConfig(cli.Config)
	cfg, loader, err := config.LoadConfigWithLoader(config.LoaderOptions{
		Path:  cli.Config,
		Watch: c.Watch,
		// Most wiring is fixed at startup; a changed file needs a
		// restart. Settings hot-reload is the live tuning path.
		OnChange: func(*config.Config) error {
			slog.Warn("Configuration file changed on disk, restart to apply")
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer loader.Close()
	slog.Info("Loaded configuration", "path", cli.Config)

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancelObs := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelObs()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	store, err := notes.Open(&cfg.Database, cfg.Embedding.Dimension)
	if err != nil {
		return fmt.Errorf("failed to open note store: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare note schema: %w", err)
	}

	metricsStore, err := metrics.Open(&cfg.MetricsDB)
	if err != nil {
		return fmt.Errorf("failed to open metrics store: %w", err)
	}
	defer metricsStore.Close()
	if err := metricsStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare metrics schema: %w", err)
	}

	embedder, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}
	defer embedder.Close()

	var vectorIndex *vector.Index
	if cfg.Vector.Enabled {
		vectorIndex, err = vector.NewIndex(&cfg.Vector, cfg.Embedding.Dimension)
		if err != nil {
			return fmt.Errorf("failed to connect vector index: %w", err)
		}
		defer vectorIndex.Close()
		if err := vectorIndex.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("failed to prepare vector collection: %w", err)
		}
		slog.Info("External vector index enabled", "collection", cfg.Vector.Collection)
	}

	// The interface holders stay nil when the index is disabled; a
	// typed nil pointer would defeat the pipeline's nil checks.
	var (
		searchVectors search.VectorIndex
		indexVectors  index.VectorIndex
	)
	if vectorIndex != nil {
		searchVectors = vectorIndex
		indexVectors = vectorIndex
	}

	searchSvc := search.NewService(cfg.Search, store, embedder, searchVectors, metricsStore)
	indexer := index.NewIndexer(store, embedder, indexVectors, cfg.Index.Workers)
	driver := index.NewDriver(indexer, store, cfg.Index)

	router := llms.NewRouterFromConfig(cfg.LLMs)

	settings, err := config.OpenSettings(cfg.Settings.Path)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	defer settings.Close()
	if c.Watch && cfg.Settings.Path != "" {
		if err := settings.Watch(); err != nil {
			slog.Warn("Settings watch unavailable", "error", err)
		}
	}

	oauthMgr, err := oauth.NewManager(&cfg.OAuth, store)
	if err != nil {
		return fmt.Errorf("failed to create oauth manager: %w", err)
	}

	validator, err := auth.NewValidatorFromConfig(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}
	if validator == nil {
		slog.Warn("Authentication disabled, all requests are anonymous")
	}

	srv, err := server.New(cfg, server.Dependencies{
		Search:    searchSvc,
		Driver:    driver,
		Notes:     store,
		Feedback:  metricsStore,
		Router:    router,
		Prompts:   prompts.NewBuilder(settings),
		Gate:      quality.NewGate(router, settings),
		Evaluator: quality.NewEvaluator(router),
		Settings:  settings,
		OAuth:     oauthMgr,
		Validator: validator,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	printStartupInfo(cfg, router, validator != nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Stop(shutdownCtx)
}

func printStartupInfo(cfg *config.Config, router *llms.Router, authEnabled bool) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	fmt.Printf("\nnoteum server ready\n")
	fmt.Printf("   Search:   http://%s/search?q=...\n", addr)
	fmt.Printf("   AI chat:  http://%s/ai/chat\n", addr)
	fmt.Printf("   Health:   http://%s/health\n", addr)
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics:  http://%s/metrics\n", addr)
	}

	if providers := router.Providers(); len(providers) > 0 {
		fmt.Printf("   Providers: %v\n", providers)
	} else {
		fmt.Printf("   Providers: none configured (AI endpoints will answer 502)\n")
	}
	if authEnabled {
		fmt.Printf("   Auth:     bearer tokens required\n")
	} else {
		fmt.Printf("   Auth:     disabled\n")
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
