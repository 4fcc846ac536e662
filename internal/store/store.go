// Package store opens the configured job store backend.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soak47/job-market-tracker/internal/config"
	"github.com/soak47/job-market-tracker/internal/elasticsearch"
	"github.com/soak47/job-market-tracker/internal/logger"
	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/postgres"
)

// Store is the persistence contract shared by every binary.
type Store interface {
	UpsertJobs(ctx context.Context, jobs []models.JobRecord) error
	ReplaceSkills(ctx context.Context, jobIDs []string, hits []models.SkillHit) error
	LoadJobs(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error)
	LoadSkillHits(ctx context.Context) ([]models.SkillHit, error)
	Ping(ctx context.Context) error
	Close()
}

var (
	_ Store = (*elasticsearch.Client)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open connects to the backend named by cfg.StoreBackend and makes sure its
// indices or tables exist.
func Open(ctx context.Context, cfg config.Common, log *slog.Logger) (Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil

	case config.BackendElasticsearch, "":
		c, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchJobsIndex, cfg.ElasticsearchSkillsIndex, log)
		if err != nil {
			return nil, err
		}
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		if err := c.Health(ctx); err != nil {
			log.Warn("elasticsearch cluster unhealthy", slog.Any("err", err))
		}
		if err := c.EnsureIndices(ctx); err != nil {
			return nil, err
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
