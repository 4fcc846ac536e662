package aggregate

import (
	"cmp"
	"slices"
	"time"

	"github.com/soak47/job-market-tracker/internal/models"
)

// SkillCount is one row of the skill frequency chart.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// SalaryPoint is one present salary amount and the field it came from.
type SalaryPoint struct {
	Kind   string  `json:"kind"`
	Salary float64 `json:"salary"`
}

// StateCount is one row of the listings-by-state chart.
type StateCount struct {
	State    string `json:"state"`
	Listings int    `json:"listings"`
}

// WeeklyStateCount is one point of the weekly trend, keyed by the Monday of the week.
type WeeklyStateCount struct {
	Week     time.Time `json:"week"`
	State    string    `json:"state"`
	Listings int       `json:"listings"`
}

// CityMedian is the median salary_avg of a canonical city.
type CityMedian struct {
	City         string  `json:"city"`
	MedianSalary float64 `json:"median_salary"`
}

// Summary bundles every aggregate of one filtered view.
type Summary struct {
	Rows        int                `json:"rows"`
	Skills      []SkillCount       `json:"skills"`
	Salaries    []SalaryPoint      `json:"salaries"`
	States      []StateCount       `json:"states"`
	Weekly      []WeeklyStateCount `json:"weekly"`
	CityMedians []CityMedian       `json:"city_medians"`
}

// Summarize filters jobs and computes every aggregate over the result.
func Summarize(jobs []models.JobRecord, hits []models.SkillHit, f Filter) Summary {
	view := Apply(jobs, f)
	return Summary{
		Rows:        len(view),
		Skills:      SkillFrequency(view, hits),
		Salaries:    SalaryDistribution(view),
		States:      ListingsByState(view),
		Weekly:      WeeklyListingsByState(view),
		CityMedians: MedianSalaryByCity(view),
	}
}

// SkillFrequency counts hits of the given jobs per skill, most frequent first.
func SkillFrequency(jobs []models.JobRecord, hits []models.SkillHit) []SkillCount {
	inView := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		inView[job.ID] = struct{}{}
	}

	counts := map[string]int{}
	for _, h := range hits {
		if _, ok := inView[h.JobID]; ok {
			counts[h.Skill]++
		}
	}

	out := make([]SkillCount, 0, len(counts))
	for skill, n := range counts {
		out = append(out, SkillCount{Skill: skill, Count: n})
	}
	slices.SortFunc(out, func(a, b SkillCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Skill, b.Skill)
	})
	return out
}

// SalaryDistribution lists every present salary amount: all averages, then
// all minimums, then all maximums.
func SalaryDistribution(jobs []models.JobRecord) []SalaryPoint {
	out := make([]SalaryPoint, 0, len(jobs)*3)
	fields := []struct {
		kind string
		get  func(models.JobRecord) *float64
	}{
		{kind: "salary_avg", get: func(j models.JobRecord) *float64 { return j.SalaryAvg }},
		{kind: "salary_min", get: func(j models.JobRecord) *float64 { return j.SalaryMin }},
		{kind: "salary_max", get: func(j models.JobRecord) *float64 { return j.SalaryMax }},
	}
	for _, f := range fields {
		for _, job := range jobs {
			if v := f.get(job); v != nil {
				out = append(out, SalaryPoint{Kind: f.kind, Salary: *v})
			}
		}
	}
	return out
}

// ListingsByState counts jobs per non-empty state, busiest first.
func ListingsByState(jobs []models.JobRecord) []StateCount {
	counts := map[string]int{}
	for _, job := range jobs {
		if job.State != "" {
			counts[job.State]++
		}
	}

	out := make([]StateCount, 0, len(counts))
	for state, n := range counts {
		out = append(out, StateCount{State: state, Listings: n})
	}
	slices.SortFunc(out, func(a, b StateCount) int {
		if c := cmp.Compare(b.Listings, a.Listings); c != 0 {
			return c
		}
		return cmp.Compare(a.State, b.State)
	})
	return out
}

// WeeklyListingsByState counts dated jobs with a state per (week, state),
// ordered by week then state.
func WeeklyListingsByState(jobs []models.JobRecord) []WeeklyStateCount {
	type key struct {
		week  time.Time
		state string
	}
	counts := map[key]int{}
	for _, job := range jobs {
		if job.State == "" || job.PostedDate == nil {
			continue
		}
		counts[key{week: WeekStart(*job.PostedDate), state: job.State}]++
	}

	out := make([]WeeklyStateCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, WeeklyStateCount{Week: k.week, State: k.state, Listings: n})
	}
	slices.SortFunc(out, func(a, b WeeklyStateCount) int {
		if c := a.Week.Compare(b.Week); c != 0 {
			return c
		}
		return cmp.Compare(a.State, b.State)
	})
	return out
}

// WeekStart returns midnight UTC of the Monday on or before t's date.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// MedianSalaryByCity computes the median salary_avg per non-empty city,
// highest first. Jobs without salary_avg are ignored.
func MedianSalaryByCity(jobs []models.JobRecord) []CityMedian {
	groups := map[string][]float64{}
	for _, job := range jobs {
		if job.CanonicalCity == "" || job.SalaryAvg == nil {
			continue
		}
		groups[job.CanonicalCity] = append(groups[job.CanonicalCity], *job.SalaryAvg)
	}

	out := make([]CityMedian, 0, len(groups))
	for city, values := range groups {
		out = append(out, CityMedian{City: city, MedianSalary: median(values)})
	}
	slices.SortFunc(out, func(a, b CityMedian) int {
		if c := cmp.Compare(b.MedianSalary, a.MedianSalary); c != 0 {
			return c
		}
		return cmp.Compare(a.City, b.City)
	})
	return out
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
