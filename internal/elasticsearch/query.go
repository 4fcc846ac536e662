package elasticsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soak47/job-market-tracker/internal/models"
)

var jobsMapping = map[string]any{
	"properties": map[string]any{
		"id":             map[string]any{"type": "keyword"},
		"title":          map[string]any{"type": "text", "fields": map[string]any{"raw": map[string]any{"type": "keyword"}}},
		"company":        map[string]any{"type": "keyword"},
		"raw_location":   map[string]any{"type": "keyword"},
		"canonical_city": map[string]any{"type": "keyword"},
		"state":          map[string]any{"type": "keyword"},
		"source":         map[string]any{"type": "keyword"},
		"posted_date":    map[string]any{"type": "date"},
		"description":    map[string]any{"type": "text"},
		"url":            map[string]any{"type": "keyword", "index": false},
		"salary_min":     map[string]any{"type": "double"},
		"salary_max":     map[string]any{"type": "double"},
		"salary_avg":     map[string]any{"type": "double"},
		"currency":       map[string]any{"type": "keyword"},
		"role_bucket":    map[string]any{"type": "keyword"},

		"category":            map[string]any{"type": "keyword"},
		"contract_time":       map[string]any{"type": "keyword"},
		"salary_is_predicted": map[string]any{"type": "boolean"},
		"search_term":         map[string]any{"type": "keyword"},
	},
}

var skillsMapping = map[string]any{
	"properties": map[string]any{
		"job_id": map[string]any{"type": "keyword"},
		"skill":  map[string]any{"type": "keyword"},
	},
}

func matchAll() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// jobQuery turns exact-match filters into a bool filter query.
func jobQuery(q models.JobQuery) map[string]any {
	filters := make([]map[string]any, 0, 3)
	for _, f := range []struct{ field, value string }{
		{field: "canonical_city", value: q.City},
		{field: "source", value: q.Source},
		{field: "role_bucket", value: q.Role},
	} {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		filters = append(filters, map[string]any{
			"term": map[string]any{f.field: f.value},
		})
	}

	if len(filters) == 0 {
		return matchAll()
	}
	return map[string]any{
		"bool": map[string]any{"filter": filters},
	}
}

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

// jobsBulkBody renders NDJSON index actions keyed by job id.
func jobsBulkBody(index string, jobs []models.JobRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, job := range jobs {
		if err := enc.Encode(bulkAction{Index: bulkMeta{Index: index, ID: job.ID}}); err != nil {
			return nil, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(job); err != nil {
			return nil, fmt.Errorf("encode job %s: %w", job.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// SkillDocID is the document id of a hit, unique per (job, skill).
func SkillDocID(h models.SkillHit) string {
	return h.JobID + ":" + h.Skill
}

func skillsBulkBody(index string, hits []models.SkillHit) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, h := range hits {
		if err := enc.Encode(bulkAction{Index: bulkMeta{Index: index, ID: SkillDocID(h)}}); err != nil {
			return nil, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(h); err != nil {
			return nil, fmt.Errorf("encode skill hit: %w", err)
		}
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (r bulkResponse) err() error {
	if !r.Errors {
		return nil
	}
	failed := 0
	var first string
	for _, item := range r.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			failed++
			if first == "" {
				first = fmt.Sprintf("%s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
			}
		}
	}
	return fmt.Errorf("bulk: %d of %d items failed, first: %s", failed, len(r.Items), first)
}
