package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/vocabulary"
)

type memStore struct {
	jobs     []models.JobRecord
	hits     map[string][]string
	loadErr  error
	replaced int
}

func (m *memStore) LoadJobs(context.Context, models.JobQuery) ([]models.JobRecord, error) {
	return m.jobs, m.loadErr
}

func (m *memStore) ReplaceSkills(_ context.Context, ids []string, hits []models.SkillHit) error {
	m.replaced++
	for _, id := range ids {
		delete(m.hits, id)
	}
	for _, h := range hits {
		m.hits[h.JobID] = append(m.hits[h.JobID], h.Skill)
	}
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeVocab(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRunOnceReplacesHits(t *testing.T) {
	st := &memStore{
		jobs: []models.JobRecord{
			{ID: "1", Title: "Data Analyst", Description: "SQL and Tableau"},
			{ID: "2", Title: "Data Engineer", Description: "Spark"},
		},
		hits: map[string][]string{"1": {"excel"}, "2": {"sql"}},
	}
	path := filepath.Join(t.TempDir(), "skills.yml")
	writeVocab(t, path, "skills:\n  - sql\n  - tableau\n")

	runOnce(context.Background(), discard(), st, vocabulary.NewLoader(path))

	require.Equal(t, 1, st.replaced)
	require.Equal(t, map[string][]string{"1": {"sql", "tableau"}}, st.hits, "stale hits are dropped")
}

func TestRunOnceSkipsWithoutVocabulary(t *testing.T) {
	st := &memStore{jobs: []models.JobRecord{{ID: "1"}}, hits: map[string][]string{}}
	runOnce(context.Background(), discard(), st, vocabulary.NewLoader(filepath.Join(t.TempDir(), "missing.yml")))
	require.Zero(t, st.replaced)
}

func TestRunOnceLoadError(t *testing.T) {
	st := &memStore{loadErr: errors.New("down"), hits: map[string][]string{}}
	path := filepath.Join(t.TempDir(), "skills.yml")
	writeVocab(t, path, "skills: [sql]\n")

	runOnce(context.Background(), discard(), st, vocabulary.NewLoader(path))
	require.Zero(t, st.replaced)
}
