package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soak47/job-market-tracker/internal/config"
	"github.com/soak47/job-market-tracker/internal/logger"
	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/processing"
	"github.com/soak47/job-market-tracker/internal/store"
	"github.com/soak47/job-market-tracker/internal/vocabulary"
)

const (
	maxConnectRetries = 10
	maxRetryDelay     = 30 * time.Second
)

type skillStore interface {
	LoadJobs(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error)
	ReplaceSkills(ctx context.Context, jobIDs []string, hits []models.SkillHit) error
}

type vocabularySource interface {
	Current() (vocabulary.Vocabulary, error)
}

func main() {
	log := logger.New("reextract")
	cfg, err := config.LoadReextract()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, err := connect(ctx, log, cfg.Common)
	if err != nil {
		log.Error("failed to connect to store after retries", slog.Any("err", err))
		os.Exit(1)
	}
	if st == nil {
		log.Info("shutdown signal received during startup")
		return
	}
	defer st.Close()

	log.Info("connected to store", slog.String("backend", cfg.StoreBackend))

	vocab := vocabulary.NewLoader(cfg.VocabularyPath)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("re-extraction job running",
		slog.Duration("interval", cfg.Interval),
		slog.String("vocabulary", cfg.VocabularyPath),
	)

	runOnce(ctx, log, st, vocab)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, st, vocab)
		}
	}
}

// connect opens the store with exponential backoff. It returns a nil store
// and nil error when ctx ends first.
func connect(ctx context.Context, log *slog.Logger, cfg config.Common) (store.Store, error) {
	retryDelay := 2 * time.Second
	var lastErr error

	for i := 0; i < maxConnectRetries; i++ {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		st, err := store.Open(openCtx, cfg, log)
		cancel()
		if err == nil {
			return st, nil
		}
		lastErr = err
		log.Warn("store not ready, retrying",
			slog.Any("err", err),
			slog.Int("attempt", i+1),
			slog.Int("max_retries", maxConnectRetries),
			slog.Duration("retry_in", retryDelay),
		)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, nil
		}
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
	return nil, lastErr
}

// runOnce recomputes every job's skill hits against the current vocabulary.
// A failed run is logged and retried on the next tick.
func runOnce(ctx context.Context, log *slog.Logger, st skillStore, vocab vocabularySource) {
	subCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	v, err := vocab.Current()
	if err != nil {
		log.Error("vocabulary unavailable, skipping run", slog.Any("err", err))
		return
	}

	jobs, err := st.LoadJobs(subCtx, models.JobQuery{})
	if err != nil {
		log.Warn("load jobs failed (will retry on next interval)", slog.Any("err", err))
		return
	}
	if len(jobs) == 0 {
		log.Debug("re-extraction skipped, no jobs stored")
		return
	}

	hits := processing.SkillHits(jobs, v.Skills)
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}

	if err := st.ReplaceSkills(subCtx, ids, hits); err != nil {
		log.Warn("replace skills failed (will retry on next interval)", slog.Any("err", err))
		return
	}

	log.Info("re-extraction completed",
		slog.Int("jobs", len(jobs)),
		slog.Int("skill_hits", len(hits)),
		slog.Int("vocabulary", len(v.Skills)),
	)
}
