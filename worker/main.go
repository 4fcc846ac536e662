package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/soak47/job-market-tracker/internal/config"
	"github.com/soak47/job-market-tracker/internal/dedupe"
	"github.com/soak47/job-market-tracker/internal/ingest"
	"github.com/soak47/job-market-tracker/internal/logger"
	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/store"
	"github.com/soak47/job-market-tracker/internal/vocabulary"
)

const dlqAttempts = 5

// dlqBackoff is the first DLQ retry delay; it doubles per attempt.
var dlqBackoff = time.Second

type batchProcessor interface {
	Process(ctx context.Context, raws []models.RawJob) (ingest.Summary, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

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

	proc := ingest.NewProcessor(vocabulary.NewLoader(cfg.VocabularyPath), st, seen, log)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
		slog.String("backend", cfg.StoreBackend),
		slog.Int("batch_size", cfg.BatchSize),
	)

	for {
		msgs, err := fetchBatch(ctx, reader, cfg.BatchSize, cfg.FlushInterval)
		if err != nil && len(msgs) == 0 {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		if !handleBatch(ctx, log, proc, dlqWriter, msgs) {
			// Leave the batch uncommitted so it is redelivered after a restart.
			log.Error("DLQ write exhausted retries, batch left uncommitted", slog.Int("messages", len(msgs)))
			continue
		}

		if err := reader.CommitMessages(ctx, msgs...); err != nil {
			log.Error("commit messages", slog.Any("err", err))
		}
	}
}

// fetchBatch reads up to size messages, returning early once flush has
// elapsed since the first one arrived.
func fetchBatch(ctx context.Context, r messageFetcher, size int, flush time.Duration) ([]kafka.Message, error) {
	first, err := r.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msgs := []kafka.Message{first}

	deadline, cancel := context.WithTimeout(ctx, flush)
	defer cancel()

	for len(msgs) < size {
		msg, err := r.FetchMessage(deadline)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return msgs, nil
			}
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// handleBatch runs every decodable message through proc and dead-letters the
// rest. It reports whether the whole batch may be committed.
func handleBatch(ctx context.Context, log *slog.Logger, proc batchProcessor, dlq messageWriter, msgs []kafka.Message) bool {
	raws := make([]models.RawJob, 0, len(msgs))
	decoded := make([]kafka.Message, 0, len(msgs))
	ok := true

	for _, msg := range msgs {
		raw, err := decodeMessage(msg)
		if err != nil {
			ok = sendToDLQ(ctx, log, dlq, msg, err) && ok
			continue
		}
		raws = append(raws, raw)
		decoded = append(decoded, msg)
	}

	if len(raws) == 0 {
		return ok
	}

	summary, err := proc.Process(ctx, raws)
	if err != nil {
		log.Warn("process batch failed, sending to DLQ", slog.Any("err", err), slog.Int("messages", len(decoded)))
		for _, msg := range decoded {
			ok = sendToDLQ(ctx, log, dlq, msg, err) && ok
		}
		return ok
	}

	log.Info("batch stored",
		slog.Int("received", summary.Received),
		slog.Int("collapsed", summary.Collapsed),
		slog.Int("duplicates", summary.Duplicates),
		slog.Int("cross_batch", summary.CrossBatch),
		slog.Int("persisted", summary.Persisted),
		slog.Int("skill_hits", summary.SkillHits),
	)
	return ok
}

// decodeMessage only rejects values that are not a raw job document; sparse
// records go through the pipeline like any other.
func decodeMessage(msg kafka.Message) (models.RawJob, error) {
	var raw models.RawJob
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		return raw, fmt.Errorf("decode raw job: %w", err)
	}
	return raw, nil
}

// sendToDLQ writes msg with error context to the dead-letter topic, retrying
// with exponential backoff.
func sendToDLQ(ctx context.Context, log *slog.Logger, dlq messageWriter, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range dlqAttempts {
		dlqErr := dlq.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := dlqBackoff * time.Duration(1<<uint(attempt))
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}
