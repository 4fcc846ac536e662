package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/soak47/job-market-tracker/internal/aggregate"
	"github.com/soak47/job-market-tracker/internal/models"
)

// viewParams are the query parameters shared by listings and aggregates.
type viewParams struct {
	City    string `validate:"max=100"`
	Source  string `validate:"max=100"`
	Role    string `validate:"omitempty,oneof=All Analyst Scientist Engineer Other"`
	Keyword string `validate:"max=200"`
	From    int    `validate:"gte=0,lte=10000"`
	Size    int    `validate:"gte=1"`
}

func (p viewParams) filter() aggregate.Filter {
	return aggregate.Filter{City: p.City, Source: p.Source, Role: p.Role, Keyword: p.Keyword}
}

// query pushes the exact-match filters down to the store.
func (p viewParams) query() models.JobQuery {
	pick := func(v string) string {
		if v == aggregate.All {
			return ""
		}
		return v
	}
	return models.JobQuery{City: pick(p.City), Source: pick(p.Source), Role: pick(p.Role)}
}

func (s *server) parseParams(r *http.Request) (viewParams, error) {
	q := r.URL.Query()
	p := viewParams{
		City:    strings.TrimSpace(q.Get("city")),
		Source:  strings.TrimSpace(q.Get("source")),
		Role:    strings.TrimSpace(q.Get("role")),
		Keyword: strings.TrimSpace(q.Get("q")),
	}

	var err error
	if p.From, err = intParam(q.Get("from"), 0); err != nil {
		return p, fmt.Errorf("from: %w", err)
	}
	if p.Size, err = intParam(q.Get("size"), s.cfg.DefaultPage); err != nil {
		return p, fmt.Errorf("size: %w", err)
	}
	p.Size = min(p.Size, s.cfg.MaxPage)

	if err := s.validate.Struct(p); err != nil {
		return p, describe(err)
	}
	return p, nil
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	return v, nil
}

// describe turns validator errors into a short client message.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	if fe.Field() == "Keyword" {
		field = "q"
	}
	if fe.Param() != "" {
		return fmt.Errorf("%s: failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%s: failed %s", field, fe.Tag())
}

// view loads the jobs matching p.
func (s *server) view(ctx context.Context, p viewParams) ([]models.JobRecord, error) {
	jobs, err := s.store.LoadJobs(ctx, p.query())
	if err != nil {
		return nil, err
	}
	return aggregate.Apply(jobs, p.filter()), nil
}

type jobsResponse struct {
	Total int                `json:"total"`
	From  int                `json:"from"`
	Size  int                `json:"size"`
	Items []models.JobRecord `json:"items"`
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleFilters(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	jobs, err := s.store.LoadJobs(ctx, models.JobQuery{})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.FilterOptions(jobs))
}

func (s *server) handleJobs(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	jobs, err := s.view(ctx, p)
	if err != nil {
		s.fail(w, err)
		return
	}
	sortNewestFirst(jobs)

	start := min(p.From, len(jobs))
	end := min(start+p.Size, len(jobs))
	writeJSON(w, http.StatusOK, jobsResponse{
		Total: len(jobs),
		From:  p.From,
		Size:  p.Size,
		Items: jobs[start:end],
	})
}

// sortNewestFirst orders by posted date descending, undated last, then id.
func sortNewestFirst(jobs []models.JobRecord) {
	slices.SortStableFunc(jobs, func(a, b models.JobRecord) int {
		switch {
		case a.PostedDate == nil && b.PostedDate != nil:
			return 1
		case a.PostedDate != nil && b.PostedDate == nil:
			return -1
		case a.PostedDate != nil && b.PostedDate != nil:
			if c := b.PostedDate.Compare(*a.PostedDate); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// stats loads the view and the skill hits, then hands both to fn.
func (s *server) stats(w http.ResponseWriter, r *http.Request, needHits bool, fn func([]models.JobRecord, []models.SkillHit) any) {
	p, err := s.parseParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	jobs, err := s.view(ctx, p)
	if err != nil {
		s.fail(w, err)
		return
	}

	var hits []models.SkillHit
	if needHits && len(jobs) > 0 {
		if hits, err = s.store.LoadSkillHits(ctx); err != nil {
			s.fail(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, fn(jobs, hits))
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.stats(w, r, true, func(jobs []models.JobRecord, hits []models.SkillHit) any {
		// jobs are already filtered
		return aggregate.Summarize(jobs, hits, aggregate.Filter{})
	})
}

func (s *server) handleSkills(w http.ResponseWriter, r *http.Request) {
	s.stats(w, r, true, func(jobs []models.JobRecord, hits []models.SkillHit) any {
		return itemsResponse[aggregate.SkillCount]{Items: aggregate.SkillFrequency(jobs, hits)}
	})
}

func (s *server) handleSalaries(w http.ResponseWriter, r *http.Request) {
	s.stats(w, r, false, func(jobs []models.JobRecord, _ []models.SkillHit) any {
		return itemsResponse[aggregate.SalaryPoint]{Items: aggregate.SalaryDistribution(jobs)}
	})
}

func (s *server) handleStates(w http.ResponseWriter, r *http.Request) {
	s.stats(w, r, false, func(jobs []models.JobRecord, _ []models.SkillHit) any {
		return itemsResponse[aggregate.StateCount]{Items: aggregate.ListingsByState(jobs)}
	})
}

func (s *server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	s.stats(w, r, false, func(jobs []models.JobRecord, _ []models.SkillHit) any {
		return itemsResponse[aggregate.WeeklyStateCount]{Items: aggregate.WeeklyListingsByState(jobs)}
	})
}

func (s *server) handleCityMedians(w http.ResponseWriter, r *http.Request) {
	s.stats(w, r, false, func(jobs []models.JobRecord, _ []models.SkillHit) any {
		return itemsResponse[aggregate.CityMedian]{Items: aggregate.MedianSalaryByCity(jobs)}
	})
}

func (s *server) fail(w http.ResponseWriter, err error) {
	s.log.Error("store request failed", slog.Any("err", err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
