package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"html"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/vocabulary"
)

const dateLayout = "2006-01-02"

// ErrNoInput is returned by Run for an empty batch.
var ErrNoInput = errors.New("no input records")

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Pipeline runs the normalization stages with a fixed vocabulary.
type Pipeline struct {
	skills []string
	states map[string]string
}

// Report counts what happened to a batch.
type Report struct {
	Received   int
	Collapsed  int // records superseded by a later record with the same id
	Duplicates int
	Kept       int
	SkillHits  int
}

// Result is the clean output of one run.
type Result struct {
	Jobs   []models.JobRecord
	Skills []models.SkillHit
	Report Report
}

// NewPipeline validates the vocabulary up front; a pipeline cannot run without skills.
// Vocabulary states are laid over the built-in abbreviation table.
func NewPipeline(v vocabulary.Vocabulary) (*Pipeline, error) {
	if len(v.Skills) == 0 {
		return nil, vocabulary.ErrEmpty
	}
	states := DefaultStates()
	maps.Copy(states, v.States)
	return &Pipeline{skills: v.Skills, states: states}, nil
}

// Run normalizes, de-duplicates, classifies and extracts skills for a batch.
func (p *Pipeline) Run(raw []models.RawJob) (*Result, error) {
	if len(raw) == 0 {
		return nil, ErrNoInput
	}

	normalized := make([]models.JobRecord, 0, len(raw))
	for _, r := range raw {
		normalized = append(normalized, p.Normalize(r))
	}

	latest := collapseIDs(normalized)
	jobs := Deduplicate(latest)
	for i := range jobs {
		jobs[i].RoleBucket = ClassifyRole(jobs[i].Title)
	}
	hits := SkillHits(jobs, p.skills)

	return &Result{
		Jobs:   jobs,
		Skills: hits,
		Report: Report{
			Received:   len(raw),
			Collapsed:  len(normalized) - len(latest),
			Duplicates: len(latest) - len(jobs),
			Kept:       len(jobs),
			SkillHits:  len(hits),
		},
	}, nil
}

// Normalize applies salary repair and location normalization to one record.
// The role bucket is left for Run, after de-duplication.
func (p *Pipeline) Normalize(r models.RawJob) models.JobRecord {
	salary := RepairSalary(r.SalaryMin, r.SalaryMax, r.SalaryAvg)

	title := CleanField(r.Title)
	company := CleanField(r.Company)
	location := CleanField(r.Location)
	source := strings.TrimSpace(r.Source)
	if source == "" {
		source = "unknown"
	}

	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = BuildJobID(source, title, company, location, r.Created)
	}

	return models.JobRecord{
		ID:            id,
		Title:         title,
		Company:       company,
		RawLocation:   location,
		CanonicalCity: CanonicalCity(location),
		State:         InferState(location, p.states),
		Source:        source,
		PostedDate:    ParseDate(r.Created),
		Description:   CleanField(r.Description),
		URL:           strings.TrimSpace(r.URL),
		SalaryMin:     salary.Min,
		SalaryMax:     salary.Max,
		SalaryAvg:     salary.Avg,
		Currency:      strings.TrimSpace(r.Currency),

		Category:          CleanField(r.Category),
		ContractTime:      strings.TrimSpace(r.ContractTime),
		SalaryIsPredicted: r.SalaryIsPredicted,
		SearchTerm:        strings.TrimSpace(r.SearchTerm),
	}
}

// collapseIDs keeps the last record for each id, in order of those last occurrences.
func collapseIDs(jobs []models.JobRecord) []models.JobRecord {
	last := make(map[string]int, len(jobs))
	for i, j := range jobs {
		last[j.ID] = i
	}
	if len(last) == len(jobs) {
		return jobs
	}
	out := make([]models.JobRecord, 0, len(last))
	for i, j := range jobs {
		if last[j.ID] == i {
			out = append(out, j)
		}
	}
	return out
}

// CleanField strips markup, decodes HTML entities and squeezes whitespace.
func CleanField(input string) string {
	if input == "" {
		return ""
	}
	s := htmlTag.ReplaceAllString(input, " ")
	s = html.UnescapeString(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ParseDate reduces a timestamp to its calendar date. Unparseable input is absent.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		dateLayout,
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			y, m, d := ts.Date()
			day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}

// BuildJobID derives a stable id for records that arrive without one.
func BuildJobID(source, title, company, location, created string) string {
	s := sha1.Sum([]byte(strings.Join([]string{source, title, company, location, strings.TrimSpace(created)}, keySep)))
	return source + "-" + hex.EncodeToString(s[:10])
}
