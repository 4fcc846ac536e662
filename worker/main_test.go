package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/soak47/job-market-tracker/internal/dedupe"
	"github.com/soak47/job-market-tracker/internal/ingest"
	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/vocabulary"
)

type stubStore struct {
	jobs []models.JobRecord
	hits []models.SkillHit
	err  error
}

func (s *stubStore) UpsertJobs(_ context.Context, jobs []models.JobRecord) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, jobs...)
	return nil
}

func (s *stubStore) ReplaceSkills(_ context.Context, _ []string, hits []models.SkillHit) error {
	s.hits = append(s.hits, hits...)
	return nil
}

type staticVocab struct{}

func (staticVocab) Current() (vocabulary.Vocabulary, error) {
	return vocabulary.Vocabulary{Skills: []string{"sql", "python", "power bi"}}, nil
}

type stubDLQ struct {
	msgs  []kafka.Message
	fails int
}

func (d *stubDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if d.fails > 0 {
		d.fails--
		return errors.New("broker unavailable")
	}
	d.msgs = append(d.msgs, msgs...)
	return nil
}

type queueFetcher struct {
	msgs []kafka.Message
}

func (q *queueFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(q.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func message(t *testing.T, raw models.RawJob, offset int64) kafka.Message {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	return kafka.Message{Value: data, Offset: offset}
}

func headers(msg kafka.Message) map[string]string {
	out := map[string]string{}
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestHandleBatchStoresJobs(t *testing.T) {
	st := &stubStore{}
	proc := ingest.NewProcessor(staticVocab{}, st, dedupe.NewCache(100, time.Hour), discard())
	dlq := &stubDLQ{}

	msgs := []kafka.Message{
		message(t, models.RawJob{
			ID: "a1", Title: "Senior Data Analyst", Company: "Harbour", Location: "Chippendale, NSW",
			Source: "adzuna", Created: "2024-05-06T09:12:44Z", Description: "<b>Power BI</b> and SQL",
			SalaryMin: 110, SalaryMax: 130,
		}, 1),
		{Value: []byte("{not json"), Offset: 2},
		message(t, models.RawJob{ID: "a3", Title: "Data Engineer", Description: "python"}, 3),
	}

	require.True(t, handleBatch(context.Background(), discard(), proc, dlq, msgs))

	require.Len(t, st.jobs, 2)
	byID := map[string]models.JobRecord{}
	for _, j := range st.jobs {
		byID[j.ID] = j
	}
	analyst := byID["a1"]
	require.Equal(t, "Sydney", analyst.CanonicalCity)
	require.Equal(t, "New South Wales", analyst.State)
	require.Equal(t, models.RoleAnalyst, analyst.RoleBucket)
	require.Equal(t, 120000.0, *analyst.SalaryAvg)
	require.Equal(t, "unknown", byID["a3"].Source)
	require.ElementsMatch(t, []models.SkillHit{
		{JobID: "a1", Skill: "power bi"},
		{JobID: "a1", Skill: "sql"},
		{JobID: "a3", Skill: "python"},
	}, st.hits)

	require.Len(t, dlq.msgs, 1)
	require.Equal(t, "2", headers(dlq.msgs[0])["original_offset"])
	require.Contains(t, headers(dlq.msgs[0])["error"], "decode raw job")
}

func TestHandleBatchStoreFailureDeadLetters(t *testing.T) {
	st := &stubStore{err: errors.New("index closed")}
	proc := ingest.NewProcessor(staticVocab{}, st, nil, discard())
	dlq := &stubDLQ{}

	msgs := []kafka.Message{
		message(t, models.RawJob{ID: "1", Title: "Data Analyst"}, 10),
		message(t, models.RawJob{ID: "2", Title: "Data Scientist"}, 11),
	}

	require.True(t, handleBatch(context.Background(), discard(), proc, dlq, msgs))
	require.Len(t, dlq.msgs, 2)
	require.Contains(t, headers(dlq.msgs[1])["error"], "index closed")
}

func TestHandleBatchKeepsPartialRecords(t *testing.T) {
	st := &stubStore{}
	proc := ingest.NewProcessor(staticVocab{}, st, nil, discard())
	dlq := &stubDLQ{}

	msgs := []kafka.Message{
		message(t, models.RawJob{ID: "42", Location: "Chippendale, NSW", SalaryMin: 175, SalaryMax: 195}, 1),
		message(t, models.RawJob{ID: "43", SalaryMin: "N/A"}, 2),
	}
	require.True(t, handleBatch(context.Background(), discard(), proc, dlq, msgs))
	require.Empty(t, dlq.msgs)
	require.Len(t, st.jobs, 2)

	byID := map[string]models.JobRecord{}
	for _, j := range st.jobs {
		byID[j.ID] = j
	}
	require.Equal(t, "New South Wales", byID["42"].State)
	require.Equal(t, models.RoleOther, byID["42"].RoleBucket)
	require.Equal(t, 185000.0, *byID["42"].SalaryAvg)
	require.Nil(t, byID["43"].SalaryMin)
}

func TestSendToDLQRetries(t *testing.T) {
	dlqBackoff = time.Millisecond
	t.Cleanup(func() { dlqBackoff = time.Second })

	dlq := &stubDLQ{fails: 2}
	require.True(t, sendToDLQ(context.Background(), discard(), dlq, kafka.Message{Value: []byte("x")}, errors.New("bad")))
	require.Len(t, dlq.msgs, 1)

	exhausted := &stubDLQ{fails: dlqAttempts}
	require.False(t, sendToDLQ(context.Background(), discard(), exhausted, kafka.Message{}, errors.New("bad")))
	require.Empty(t, exhausted.msgs)
}

func TestFetchBatch(t *testing.T) {
	q := &queueFetcher{msgs: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}

	msgs, err := fetchBatch(context.Background(), q, 2, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	msgs, err = fetchBatch(context.Background(), q, 5, 20*time.Millisecond)
	require.NoError(t, err, "flush interval ends a partial batch")
	require.Len(t, msgs, 1)
	require.EqualValues(t, 3, msgs[0].Offset)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetchBatch(ctx, q, 5, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}
