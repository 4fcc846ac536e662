package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soak47/job-market-tracker/internal/dedupe"
	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/processing"
	"github.com/soak47/job-market-tracker/internal/vocabulary"
)

// Writer persists clean jobs and their skill hits.
type Writer interface {
	UpsertJobs(ctx context.Context, jobs []models.JobRecord) error
	ReplaceSkills(ctx context.Context, jobIDs []string, hits []models.SkillHit) error
}

// VocabularySource returns the vocabulary to use for the next batch.
type VocabularySource interface {
	Current() (vocabulary.Vocabulary, error)
}

// Summary counts what one Process call did.
type Summary struct {
	Received   int `json:"received"`
	Collapsed  int `json:"collapsed"`
	Duplicates int `json:"duplicates"`
	CrossBatch int `json:"cross_batch"`
	Persisted  int `json:"persisted"`
	SkillHits  int `json:"skill_hits"`
}

// Processor runs raw batches through the pipeline into a Writer.
type Processor struct {
	vocab VocabularySource
	store Writer
	seen  dedupe.Store
	log   *slog.Logger
}

// NewProcessor wires a processor. seen may be nil to disable cross-batch
// de-duplication.
func NewProcessor(vocab VocabularySource, store Writer, seen dedupe.Store, log *slog.Logger) *Processor {
	return &Processor{vocab: vocab, store: store, seen: seen, log: log}
}

// Process normalizes raws and persists the survivors. Jobs whose dedupe key
// is held by a different id from an earlier batch are dropped.
func (p *Processor) Process(ctx context.Context, raws []models.RawJob) (Summary, error) {
	vocab, err := p.vocab.Current()
	if err != nil {
		return Summary{}, fmt.Errorf("load vocabulary: %w", err)
	}
	pipeline, err := processing.NewPipeline(vocab)
	if err != nil {
		return Summary{}, fmt.Errorf("build pipeline: %w", err)
	}

	res, err := pipeline.Run(raws)
	if err != nil {
		return Summary{}, fmt.Errorf("run pipeline: %w", err)
	}

	jobs := p.claim(ctx, res.Jobs)
	ids := make([]string, 0, len(jobs))
	kept := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
		kept[j.ID] = struct{}{}
	}
	hits := make([]models.SkillHit, 0, len(res.Skills))
	for _, h := range res.Skills {
		if _, ok := kept[h.JobID]; ok {
			hits = append(hits, h)
		}
	}

	summary := Summary{
		Received:   res.Report.Received,
		Collapsed:  res.Report.Collapsed,
		Duplicates: res.Report.Duplicates,
		CrossBatch: len(res.Jobs) - len(jobs),
		Persisted:  len(jobs),
		SkillHits:  len(hits),
	}
	if len(jobs) == 0 {
		return summary, nil
	}

	if err := p.store.UpsertJobs(ctx, jobs); err != nil {
		return summary, fmt.Errorf("store jobs: %w", err)
	}
	if err := p.store.ReplaceSkills(ctx, ids, hits); err != nil {
		return summary, fmt.Errorf("store skills: %w", err)
	}

	return summary, nil
}

// claim drops jobs already claimed by another id. Jobs whose claim errors
// are kept.
func (p *Processor) claim(ctx context.Context, jobs []models.JobRecord) []models.JobRecord {
	if p.seen == nil {
		return jobs
	}
	out := make([]models.JobRecord, 0, len(jobs))
	for _, job := range jobs {
		ok, err := p.seen.Claim(ctx, processing.DedupeKey(job), job.ID)
		if err != nil {
			p.log.Warn("dedupe claim failed", slog.String("id", job.ID), slog.Any("err", err))
			ok = true
		}
		if !ok {
			p.log.Debug("duplicate listing skipped", slog.String("id", job.ID), slog.String("title", job.Title))
			continue
		}
		out = append(out, job)
	}
	return out
}
