package processing

import (
	"slices"
	"strings"

	"github.com/soak47/job-market-tracker/internal/models"
)

// SearchText is the case-folded text scanned for skills.
func SearchText(title, description string) string {
	return strings.ToLower(strings.TrimSpace(title + " " + description))
}

// ExtractSkills returns the sorted set of vocabulary entries that occur in
// text as case-insensitive substrings. There is no word-boundary check, so a
// short entry can match inside a longer word.
func ExtractSkills(text string, vocab []string) []string {
	text = strings.ToLower(text)
	if text == "" || len(vocab) == 0 {
		return nil
	}

	var hits []string
	for _, skill := range vocab {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" || !strings.Contains(text, skill) {
			continue
		}
		if !slices.Contains(hits, skill) {
			hits = append(hits, skill)
		}
	}
	slices.Sort(hits)
	return hits
}

// SkillHits extracts the hit set of every job. Each (job, skill) pair appears
// once; jobs must have distinct ids.
func SkillHits(jobs []models.JobRecord, vocab []string) []models.SkillHit {
	var out []models.SkillHit
	for _, job := range jobs {
		for _, skill := range ExtractSkills(SearchText(job.Title, job.Description), vocab) {
			out = append(out, models.SkillHit{JobID: job.ID, Skill: skill})
		}
	}
	return out
}
