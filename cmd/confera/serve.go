package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/confera/confera/config"
	"github.com/confera/confera/conversation"
	"github.com/confera/confera/llm"
	"github.com/confera/confera/platform"
	"github.com/confera/confera/qa"
	"github.com/confera/confera/retrieval"
	"github.com/confera/confera/server"
	"github.com/confera/confera/shared/db"
	sharedllm "github.com/confera/confera/shared/llm"
	"github.com/confera/confera/store"
	"github.com/confera/confera/tools"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Confera backend server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	slog.Info("starting confera backend")
	slog.Info("server configured", "host", cfg.Server.Host, "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("connecting to database")
	pool, err := db.Connect(ctx, db.Config{URL: cfg.Database.URL, Timezone: cfg.Database.Timezone})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return err
	}
	defer pool.Close()
	slog.Info("database connected")

	s := store.New(pool)

	modelClient := llm.NewClient(sharedllm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey,
		sharedllm.WithModel(cfg.LLM.Model),
		sharedllm.WithEmbeddingModel(cfg.LLM.EmbeddingModel),
		sharedllm.WithMaxTokens(cfg.LLM.MaxTokens),
	))

	startupCtx, startupCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := modelClient.EnsureModel(startupCtx); err != nil {
		slog.Warn("model readiness check failed", "model", cfg.LLM.Model, "error", err)
	}
	startupCancel()

	platformClient := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.APIKey)
	registry := tools.NewRegistry(platformClient)
	orch := conversation.New(modelClient, registry)

	// The retrieval floor is zero: the router needs sub-threshold matches
	// for generation context, and applies the confidence threshold itself.
	retriever := retrieval.NewClient(modelClient, s, 0, cfg.QA.TopK)
	router := qa.NewRouter(modelClient, retriever, cfg.QA.ConfidenceThreshold, cfg.QA.AlwaysAutoAnswer)

	srv := server.NewServer(cfg, server.Deps{
		Store:          s,
		Orchestrator:   orch,
		Router:         router,
		Embedder:       retriever,
		ModelHealth:    modelClient.HealthCheck,
		PlatformHealth: platformClient.HealthCheck,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		slog.Error("server error", "error", err)
		return err
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
			return err
		}
		slog.Info("shutdown complete")
		return nil
	}
}
