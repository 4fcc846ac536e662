// Package aggregate computes the chart-ready summaries of a filtered view of
// clean job records. Nothing here re-runs normalization.
package aggregate

import (
	"slices"
	"strings"

	"github.com/soak47/job-market-tracker/internal/models"
)

// All disables a city, source or role filter, like an empty value.
const All = "All"

// Filter narrows the record set. Set fields compose with AND.
type Filter struct {
	City    string `json:"city,omitempty"`
	Source  string `json:"source,omitempty"`
	Role    string `json:"role,omitempty"`
	Keyword string `json:"q,omitempty"`
}

// Match reports whether job passes every set filter. City, source and role
// are exact matches; the keyword is a case-insensitive substring of title,
// company or raw location.
func (f Filter) Match(job models.JobRecord) bool {
	if active(f.City) && job.CanonicalCity != f.City {
		return false
	}
	if active(f.Source) && job.Source != f.Source {
		return false
	}
	if active(f.Role) && string(job.RoleBucket) != f.Role {
		return false
	}

	kw := strings.ToLower(strings.TrimSpace(f.Keyword))
	if kw == "" {
		return true
	}
	for _, field := range []string{job.Title, job.Company, job.RawLocation} {
		if strings.Contains(strings.ToLower(field), kw) {
			return true
		}
	}
	return false
}

// Apply returns the records matching f, preserving order.
func Apply(jobs []models.JobRecord, f Filter) []models.JobRecord {
	out := make([]models.JobRecord, 0, len(jobs))
	for _, job := range jobs {
		if f.Match(job) {
			out = append(out, job)
		}
	}
	return out
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != All
}

// Options lists the values a caller can filter on.
type Options struct {
	Cities  []string `json:"cities"`
	Sources []string `json:"sources"`
	Roles   []string `json:"roles"`
}

// FilterOptions collects distinct cities, sources and roles, sorted. The
// country-level city "Australia" and the "sample" source are left out.
func FilterOptions(jobs []models.JobRecord) Options {
	cities := map[string]struct{}{}
	sources := map[string]struct{}{}
	roles := map[string]struct{}{}

	for _, job := range jobs {
		if job.CanonicalCity != "" && !strings.EqualFold(job.CanonicalCity, "australia") {
			cities[job.CanonicalCity] = struct{}{}
		}
		if job.Source != "" && !strings.EqualFold(job.Source, "sample") {
			sources[job.Source] = struct{}{}
		}
		if job.RoleBucket != "" {
			roles[string(job.RoleBucket)] = struct{}{}
		}
	}

	return Options{
		Cities:  sortedKeys(cities),
		Sources: sortedKeys(sources),
		Roles:   sortedKeys(roles),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
