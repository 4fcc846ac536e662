// Package adzuna pulls raw job advertisements from the Adzuna search API, or
// from a saved response on disk.
package adzuna

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/soak47/job-market-tracker/internal/models"
)

const (
	defaultBaseURL = "https://api.adzuna.com/v1/api/jobs"
	// PageSize is the number of results requested per page.
	PageSize    = 50
	httpTimeout = 20 * time.Second
)

// ErrMissingCredentials is returned when the app id or key is empty.
var ErrMissingCredentials = errors.New("missing ADZUNA_APP_ID / ADZUNA_APP_KEY")

// Client fetches job offers from the Adzuna public API.
type Client struct {
	appID   string
	appKey  string
	country string
	where   string
	baseURL string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client for country (e.g. "au"). where narrows every
// search to a location and may be empty.
func NewClient(appID, appKey, country, where string, opts ...Option) (*Client, error) {
	if appID == "" || appKey == "" {
		return nil, ErrMissingCredentials
	}
	c := &Client{
		appID:   appID,
		appKey:  appKey,
		country: strings.ToLower(country),
		where:   where,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: httpTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PageSize reports how many results a full page holds.
func (c *Client) PageSize() int { return PageSize }

// Fetch returns one page (1-based) of results for query.
func (c *Client) Fetch(ctx context.Context, query string, page int) ([]models.RawJob, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", c.baseURL, c.country, page)

	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("results_per_page", strconv.Itoa(PageSize))
	params.Set("what", query)
	if c.where != "" {
		params.Set("where", c.where)
	}
	params.Set("content-type", "application/json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adzuna returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseResults(body, "adzuna", query)
}

// SampleSource serves a saved Adzuna response. Every record is tagged
// source "sample"; page 1 holds everything.
type SampleSource struct {
	path string
}

// NewSampleSource reads from path on each page-1 fetch.
func NewSampleSource(path string) *SampleSource {
	return &SampleSource{path: path}
}

// Fetch implements the ingestion source contract. query only tags the records.
func (s *SampleSource) Fetch(_ context.Context, query string, page int) ([]models.RawJob, error) {
	if page > 1 {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return parseResults(data, "sample", query)
}

type response struct {
	Results []result `json:"results"`
}

// Salary bounds stay untyped: numbers decode as json.Number and anything
// else is left for the pipeline to coerce or drop.
type result struct {
	ID              flexString  `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Company         displayName `json:"company"`
	Location        displayName `json:"location"`
	Category        label       `json:"category"`
	Created         string      `json:"created"`
	RedirectURL     string      `json:"redirect_url"`
	ContractTime    string      `json:"contract_time"`
	SalaryMin       any         `json:"salary_min"`
	SalaryMax       any         `json:"salary_max"`
	SalaryPredicted flexString  `json:"salary_is_predicted"`
	Currency        string      `json:"salary_currency"`
}

type displayName struct {
	DisplayName string `json:"display_name"`
}

type label struct {
	Label string `json:"label"`
}

// flexString accepts a JSON string, number or boolean.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "null":
		*f = ""
		return nil
	case "true", "false":
		*f = flexString(b)
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func parseResults(body []byte, source, query string) ([]models.RawJob, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload response
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	jobs := make([]models.RawJob, 0, len(payload.Results))
	for _, r := range payload.Results {
		jobs = append(jobs, models.RawJob{
			ID:          string(r.ID),
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			Source:      source,
			Created:     r.Created,
			Description: r.Description,
			URL:         r.RedirectURL,
			SalaryMin:   r.SalaryMin,
			SalaryMax:   r.SalaryMax,
			Currency:    r.Currency,

			Category:          r.Category.Label,
			ContractTime:      r.ContractTime,
			SalaryIsPredicted: predicted(r.SalaryPredicted),
			SearchTerm:        query,
		})
	}
	return jobs, nil
}

// predicted reads Adzuna's "0"/"1" flag.
func predicted(v flexString) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(string(v)))
	return err == nil && b
}
