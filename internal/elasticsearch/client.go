package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/soak47/job-market-tracker/internal/models"
)

const (
	pageSize     = 1000
	deleteChunk  = 1000
	maxBulkItems = 2000
)

// Client stores clean jobs and their skill hits in two indices.
type Client struct {
	es          *elasticsearch.Client
	jobsIndex   string
	skillsIndex string
	log         *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr, jobsIndex, skillsIndex string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, jobsIndex: jobsIndex, skillsIndex: skillsIndex, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health checks the cluster health endpoint.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// Close is a no-op; the transport has no long-lived resources to release.
func (c *Client) Close() {}

// EnsureIndices creates the jobs and skills indices when they are missing.
func (c *Client) EnsureIndices(ctx context.Context) error {
	for index, mapping := range map[string]map[string]any{
		c.jobsIndex:   jobsMapping,
		c.skillsIndex: skillsMapping,
	} {
		res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("check index %s: %w", index, err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		payload, err := json.Marshal(map[string]any{"mappings": mapping})
		if err != nil {
			return fmt.Errorf("marshal mapping: %w", err)
		}
		res, err = c.es.Indices.Create(index,
			c.es.Indices.Create.WithContext(ctx),
			c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
		)
		if err != nil {
			return fmt.Errorf("create index %s: %w", index, err)
		}
		if err := checkResponse(res, "create index "+index); err != nil {
			// another replica won the race
			if strings.Contains(err.Error(), "resource_already_exists_exception") {
				continue
			}
			return err
		}
		c.log.Info("index created", slog.String("index", index))
	}
	return nil
}

// UpsertJobs writes jobs keyed by id; an existing document is replaced.
func (c *Client) UpsertJobs(ctx context.Context, jobs []models.JobRecord) error {
	for start := 0; start < len(jobs); start += maxBulkItems {
		end := min(start+maxBulkItems, len(jobs))
		body, err := jobsBulkBody(c.jobsIndex, jobs[start:end])
		if err != nil {
			return err
		}
		if err := c.bulk(ctx, body); err != nil {
			return fmt.Errorf("upsert jobs: %w", err)
		}
	}
	return nil
}

// ReplaceSkills drops every stored hit of jobIDs and indexes hits in their place.
// Hits for ids outside jobIDs are ignored.
func (c *Client) ReplaceSkills(ctx context.Context, jobIDs []string, hits []models.SkillHit) error {
	if len(jobIDs) == 0 {
		return nil
	}

	for start := 0; start < len(jobIDs); start += deleteChunk {
		end := min(start+deleteChunk, len(jobIDs))
		if err := c.deleteSkills(ctx, jobIDs[start:end]); err != nil {
			return err
		}
	}

	wanted := make(map[string]struct{}, len(jobIDs))
	for _, id := range jobIDs {
		wanted[id] = struct{}{}
	}
	kept := make([]models.SkillHit, 0, len(hits))
	for _, h := range hits {
		if _, ok := wanted[h.JobID]; ok {
			kept = append(kept, h)
		}
	}

	for start := 0; start < len(kept); start += maxBulkItems {
		end := min(start+maxBulkItems, len(kept))
		body, err := skillsBulkBody(c.skillsIndex, kept[start:end])
		if err != nil {
			return err
		}
		if err := c.bulk(ctx, body); err != nil {
			return fmt.Errorf("index skills: %w", err)
		}
	}
	return nil
}

func (c *Client) deleteSkills(ctx context.Context, jobIDs []string) error {
	payload, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"terms": map[string]any{"job_id": jobIDs},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal delete body: %w", err)
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.skillsIndex},
		bytes.NewReader(payload),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithWaitForCompletion(true),
		c.es.DeleteByQuery.WithConflicts("proceed"),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete skills: %w", err)
	}
	return checkResponse(res, "delete skills")
}

// LoadJobs returns every stored job matching q.
func (c *Client) LoadJobs(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error) {
	jobs, err := searchAll[models.JobRecord](ctx, c, c.jobsIndex, jobQuery(q), []string{"id"})
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return jobs, nil
}

// LoadSkillHits returns every stored skill hit.
func (c *Client) LoadSkillHits(ctx context.Context) ([]models.SkillHit, error) {
	hits, err := searchAll[models.SkillHit](ctx, c, c.skillsIndex, matchAll(), []string{"job_id", "skill"})
	if err != nil {
		return nil, fmt.Errorf("load skill hits: %w", err)
	}
	return hits, nil
}

func (c *Client) bulk(ctx context.Context, body []byte) error {
	req := esapi.BulkRequest{
		Body:    bytes.NewReader(body),
		Refresh: "wait_for",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bulk: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	return parsed.err()
}

// searchAll pages through index with search_after over the given sort fields.
func searchAll[T any](ctx context.Context, c *Client, index string, query map[string]any, sortFields []string) ([]T, error) {
	sort := make([]map[string]any, 0, len(sortFields))
	for _, f := range sortFields {
		sort = append(sort, map[string]any{f: map[string]any{"order": "asc"}})
	}

	var (
		out   []T
		after []any
	)
	for {
		body := map[string]any{
			"size":  pageSize,
			"query": query,
			"sort":  sort,
		}
		if after != nil {
			body["search_after"] = after
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal search body: %w", err)
		}

		res, err := c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(index),
			c.es.Search.WithBody(bytes.NewReader(payload)),
		)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}

		var parsed struct {
			Hits struct {
				Hits []struct {
					Source T     `json:"_source"`
					Sort   []any `json:"sort"`
				} `json:"hits"`
			} `json:"hits"`
		}
		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
		}
		err = json.NewDecoder(res.Body).Decode(&parsed)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}

		for _, hit := range parsed.Hits.Hits {
			out = append(out, hit.Source)
		}

		n := len(parsed.Hits.Hits)
		if n < pageSize {
			break
		}
		after = parsed.Hits.Hits[n-1].Sort
	}

	if out == nil {
		out = []T{}
	}
	return out, nil
}

func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s failed: %s", op, strings.TrimSpace(string(data)))
	}
	return nil
}
