package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/segmentio/kafka-go"

	"github.com/soak47/job-market-tracker/internal/adzuna"
	"github.com/soak47/job-market-tracker/internal/config"
	"github.com/soak47/job-market-tracker/internal/dedupe"
	"github.com/soak47/job-market-tracker/internal/ingest"
	"github.com/soak47/job-market-tracker/internal/logger"
	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/store"
	"github.com/soak47/job-market-tracker/internal/vocabulary"
)

const runTimeout = 10 * time.Minute

// sink receives the records of one collection run.
type sink interface {
	Send(ctx context.Context, runID string, raws []models.RawJob) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	log := logger.New("collector")
	cfg, err := config.LoadCollector()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	src, err := newSource(cfg)
	if err != nil {
		log.Error("init source", slog.Any("err", err))
		os.Exit(1)
	}

	var out sink
	if cfg.Direct {
		st, err := store.Open(ctx, cfg.Common, log)
		if err != nil {
			log.Error("open store", slog.String("backend", cfg.StoreBackend), slog.Any("err", err))
			os.Exit(1)
		}
		defer st.Close()

		seen, err := dedupe.New(ctx, cfg.RedisURL, cfg.DedupeCapacity, cfg.DedupeTTL)
		if err != nil {
			log.Error("init dedupe store", slog.Any("err", err))
			os.Exit(1)
		}
		if c, ok := seen.(io.Closer); ok {
			defer c.Close()
		}
		out = &directSink{proc: ingest.NewProcessor(vocabulary.NewLoader(cfg.VocabularyPath), st, seen, log), log: log}
	} else {
		w := &kafka.Writer{
			Addr:                   kafka.TCP(cfg.KafkaBrokers...),
			Topic:                  cfg.KafkaTopic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
		defer w.Close()
		out = &kafkaSink{w: w}
	}

	log.Info("collector started",
		slog.Any("queries", cfg.Queries),
		slog.Bool("sample", cfg.SamplePath != ""),
		slog.Bool("direct", cfg.Direct),
		slog.String("schedule", cfg.Schedule),
	)

	if cfg.Schedule == "" {
		if err := runOnce(ctx, log, src, out, cfg); err != nil {
			os.Exit(1)
		}
		return
	}

	c, err := startSchedule(cfg.Schedule, func() { _ = runOnce(ctx, log, src, out, cfg) })
	if err != nil {
		log.Error("invalid COLLECTOR_SCHEDULE", slog.String("schedule", cfg.Schedule), slog.Any("err", err))
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	<-c.Stop().Done()
}

// startSchedule runs job on spec and once right away. Every run, the first
// included, goes through the same skip-if-still-running wrapper.
func startSchedule(spec string, job func()) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	id, err := c.AddFunc(spec, job)
	if err != nil {
		return nil, err
	}
	c.Start()
	go c.Entry(id).WrappedJob.Run()
	return c, nil
}

func newSource(cfg *config.Collector) (ingest.Source, error) {
	if cfg.SamplePath != "" {
		return adzuna.NewSampleSource(cfg.SamplePath), nil
	}
	c, err := adzuna.NewClient(cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry, cfg.Where)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// runOnce collects every query and hands the result to out. A fetch error
// still delivers whatever was collected before it.
func runOnce(ctx context.Context, log *slog.Logger, src ingest.Source, out sink, cfg *config.Collector) error {
	runID := uuid.NewString()
	log = log.With(slog.String("run_id", runID))

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	raws, err := ingest.Collect(ctx, src, cfg.Queries, cfg.MaxPages, cfg.MaxResults)
	if err != nil {
		log.Warn("collection incomplete", slog.Any("err", err), slog.Int("collected", len(raws)))
	}
	if len(raws) == 0 {
		log.Info("no jobs found")
		return err
	}

	if sendErr := out.Send(ctx, runID, raws); sendErr != nil {
		log.Error("deliver jobs", slog.Any("err", sendErr), slog.Int("jobs", len(raws)))
		return sendErr
	}
	log.Info("run completed", slog.Int("jobs", len(raws)))
	return err
}

type kafkaSink struct {
	w messageWriter
}

func (s *kafkaSink) Send(ctx context.Context, runID string, raws []models.RawJob) error {
	msgs, err := buildMessages(runID, raws)
	if err != nil {
		return err
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// buildMessages keys each record by id so one listing stays on one partition.
func buildMessages(runID string, raws []models.RawJob) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(raws))
	for _, raw := range raws {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("marshal job %s: %w", raw.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(raw.ID),
			Value:   data,
			Headers: []kafka.Header{{Key: "run_id", Value: []byte(runID)}},
		})
	}
	return msgs, nil
}

type directSink struct {
	proc interface {
		Process(ctx context.Context, raws []models.RawJob) (ingest.Summary, error)
	}
	log *slog.Logger
}

func (s *directSink) Send(ctx context.Context, runID string, raws []models.RawJob) error {
	summary, err := s.proc.Process(ctx, raws)
	if err != nil {
		return err
	}
	s.log.Info("jobs stored",
		slog.String("run_id", runID),
		slog.Int("received", summary.Received),
		slog.Int("duplicates", summary.Duplicates),
		slog.Int("cross_batch", summary.CrossBatch),
		slog.Int("persisted", summary.Persisted),
		slog.Int("skill_hits", summary.SkillHits),
	)
	return nil
}
