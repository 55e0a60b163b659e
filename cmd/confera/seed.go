package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/confera/confera/config"
	"github.com/confera/confera/domain"
	"github.com/confera/confera/llm"
	"github.com/confera/confera/shared/backoff"
	"github.com/confera/confera/shared/db"
	sharedllm "github.com/confera/confera/shared/llm"
	"github.com/confera/confera/store"
)

type seedEntry struct {
	EventID  string `json:"eventId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// seedCmd bulk-loads question/answer pairs into the vector cache, so a new
// event starts with FAQ coverage instead of escalating everything.
func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load Q&A pairs from a JSON file into the vector cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file of {eventId, question, answer} entries")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runSeed(file string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var entries []seedEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, db.Config{URL: cfg.Database.URL, Timezone: cfg.Database.Timezone})
	if err != nil {
		return err
	}
	defer pool.Close()
	s := store.New(pool)

	modelClient := llm.NewClient(sharedllm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey,
		sharedllm.WithEmbeddingModel(cfg.LLM.EmbeddingModel),
	))

	loaded := 0
	for i, entry := range entries {
		if entry.EventID == "" || entry.Question == "" || entry.Answer == "" {
			slog.Warn("seed: skipping incomplete entry", "index", i)
			continue
		}

		var embedding []float32
		err := backoff.Retry(ctx, backoff.Quick, func(ctx context.Context, attempt int) error {
			var embedErr error
			embedding, embedErr = modelClient.Embed(ctx, entry.Question)
			return embedErr
		})
		if err != nil {
			return fmt.Errorf("embed entry %d: %w", i, err)
		}

		if err := s.StoreQAPair(ctx, &domain.QAPair{
			EventID:   entry.EventID,
			Question:  entry.Question,
			Answer:    entry.Answer,
			Embedding: embedding,
		}); err != nil {
			return fmt.Errorf("store entry %d: %w", i, err)
		}
		loaded++
	}

	slog.Info("seed complete", "loaded", loaded, "total", len(entries))
	return nil
}
