package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/soak47/job-market-tracker/internal/models"
)

const keySep = "\x1f"

// DedupeKey hashes the fields shared by cross-posted or re-scraped copies of a listing.
func DedupeKey(job models.JobRecord) string {
	date := ""
	if job.PostedDate != nil {
		date = job.PostedDate.Format(dateLayout)
	}
	s := sha1.Sum([]byte(strings.Join([]string{job.Title, job.Company, job.CanonicalCity, date}, keySep)))
	return hex.EncodeToString(s[:])
}

// Deduplicate keeps the first record per DedupeKey after sorting by posted
// date (undated last), company (empty last), title and id. The result is in
// that sorted order. The input is not modified.
func Deduplicate(jobs []models.JobRecord) []models.JobRecord {
	sorted := slices.Clone(jobs)
	slices.SortStableFunc(sorted, compareForDedupe)

	seen := make(map[string]struct{}, len(sorted))
	out := make([]models.JobRecord, 0, len(sorted))
	for _, job := range sorted {
		key := DedupeKey(job)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, job)
	}
	return out
}

func compareForDedupe(a, b models.JobRecord) int {
	switch {
	case a.PostedDate == nil && b.PostedDate != nil:
		return 1
	case a.PostedDate != nil && b.PostedDate == nil:
		return -1
	case a.PostedDate != nil && b.PostedDate != nil:
		if c := a.PostedDate.Compare(*b.PostedDate); c != 0 {
			return c
		}
	}

	if c := compareEmptyLast(a.Company, b.Company); c != 0 {
		return c
	}
	if c := strings.Compare(a.Title, b.Title); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func compareEmptyLast(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	default:
		return strings.Compare(a, b)
	}
}
