// Package postgres is the relational job store, an alternative to Elasticsearch.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soak47/job-market-tracker/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	company        TEXT NOT NULL DEFAULT '',
	raw_location   TEXT NOT NULL DEFAULT '',
	canonical_city TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	posted_date    DATE,
	description    TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	salary_min     DOUBLE PRECISION,
	salary_max     DOUBLE PRECISION,
	salary_avg     DOUBLE PRECISION,
	currency       TEXT NOT NULL DEFAULT '',
	role_bucket    TEXT NOT NULL DEFAULT ''
);
ALTER TABLE jobs ADD COLUMN IF NOT EXISTS category TEXT NOT NULL DEFAULT '';
ALTER TABLE jobs ADD COLUMN IF NOT EXISTS contract_time TEXT NOT NULL DEFAULT '';
ALTER TABLE jobs ADD COLUMN IF NOT EXISTS salary_is_predicted BOOLEAN NOT NULL DEFAULT FALSE;
ALTER TABLE jobs ADD COLUMN IF NOT EXISTS search_term TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS jobs_canonical_city_idx ON jobs (canonical_city);
CREATE TABLE IF NOT EXISTS job_skills (
	job_id TEXT NOT NULL,
	skill  TEXT NOT NULL,
	PRIMARY KEY (job_id, skill)
);`

const upsertJob = `
INSERT INTO jobs (id, title, company, raw_location, canonical_city, state, source, posted_date,
	description, url, salary_min, salary_max, salary_avg, currency, role_bucket,
	category, contract_time, salary_is_predicted, search_term)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	raw_location = EXCLUDED.raw_location,
	canonical_city = EXCLUDED.canonical_city,
	state = EXCLUDED.state,
	source = EXCLUDED.source,
	posted_date = EXCLUDED.posted_date,
	description = EXCLUDED.description,
	url = EXCLUDED.url,
	salary_min = EXCLUDED.salary_min,
	salary_max = EXCLUDED.salary_max,
	salary_avg = EXCLUDED.salary_avg,
	currency = EXCLUDED.currency,
	role_bucket = EXCLUDED.role_bucket,
	category = EXCLUDED.category,
	contract_time = EXCLUDED.contract_time,
	salary_is_predicted = EXCLUDED.salary_is_predicted,
	search_term = EXCLUDED.search_term`

const jobColumns = `id, title, company, raw_location, canonical_city, state, source, posted_date,
	description, url, salary_min, salary_max, salary_avg, currency, role_bucket,
	category, contract_time, salary_is_predicted, search_term`

// Store persists jobs and skill hits over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New creates and verifies a pool for databaseURL.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{pool: pool, log: logger}, nil
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	s.log.Debug("schema ready")
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// UpsertJobs inserts jobs or overwrites the row with the same id.
func (s *Store) UpsertJobs(ctx context.Context, jobs []models.JobRecord) error {
	if len(jobs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(upsertJob,
			j.ID, j.Title, j.Company, j.RawLocation, j.CanonicalCity, j.State, j.Source, j.PostedDate,
			j.Description, j.URL, j.SalaryMin, j.SalaryMax, j.SalaryAvg, j.Currency, string(j.RoleBucket),
			j.Category, j.ContractTime, j.SalaryIsPredicted, j.SearchTerm,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	for _, j := range jobs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert job %s: %w", j.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("upsert jobs: %w", err)
	}
	return nil
}

// ReplaceSkills swaps the hit set of jobIDs for hits in one transaction.
// Hits for ids outside jobIDs are ignored.
func (s *Store) ReplaceSkills(ctx context.Context, jobIDs []string, hits []models.SkillHit) error {
	if len(jobIDs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM job_skills WHERE job_id = ANY($1)`, jobIDs); err != nil {
		return fmt.Errorf("delete skills: %w", err)
	}

	rows := skillRows(jobIDs, hits)
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"job_skills"}, []string{"job_id", "skill"}, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy skills: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// skillRows keeps hits of jobIDs, one row per (job, skill).
func skillRows(jobIDs []string, hits []models.SkillHit) [][]any {
	wanted := make(map[string]struct{}, len(jobIDs))
	for _, id := range jobIDs {
		wanted[id] = struct{}{}
	}

	seen := make(map[models.SkillHit]struct{}, len(hits))
	rows := make([][]any, 0, len(hits))
	for _, h := range hits {
		if _, ok := wanted[h.JobID]; !ok {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		rows = append(rows, []any{h.JobID, h.Skill})
	}
	return rows
}

// LoadJobs returns every job matching q, ordered by id.
func (s *Store) LoadJobs(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error) {
	sql, args := selectJobs(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.JobRecord, 0)
	for rows.Next() {
		var (
			j    models.JobRecord
			role string
		)
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Company, &j.RawLocation, &j.CanonicalCity, &j.State, &j.Source, &j.PostedDate,
			&j.Description, &j.URL, &j.SalaryMin, &j.SalaryMax, &j.SalaryAvg, &j.Currency, &role,
			&j.Category, &j.ContractTime, &j.SalaryIsPredicted, &j.SearchTerm,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.RoleBucket = models.RoleBucket(role)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// LoadSkillHits returns every stored hit.
func (s *Store) LoadSkillHits(ctx context.Context) ([]models.SkillHit, error) {
	rows, err := s.pool.Query(ctx, `SELECT job_id, skill FROM job_skills ORDER BY job_id, skill`)
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	hits, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.SkillHit])
	if err != nil {
		return nil, fmt.Errorf("collect skills: %w", err)
	}
	if hits == nil {
		hits = []models.SkillHit{}
	}
	return hits, nil
}

// selectJobs builds the filtered SELECT with positional arguments.
func selectJobs(q models.JobQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	for _, f := range []struct{ column, value string }{
		{column: "canonical_city", value: q.City},
		{column: "source", value: q.Source},
		{column: "role_bucket", value: q.Role},
	} {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		args = append(args, f.value)
		where = append(where, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}

	sql := "SELECT " + jobColumns + " FROM jobs"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	return sql + " ORDER BY id", args
}
