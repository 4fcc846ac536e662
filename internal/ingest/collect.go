// Package ingest moves raw job records from a source through the
// normalization pipeline into a store.
package ingest

import (
	"context"
	"fmt"

	"github.com/soak47/job-market-tracker/internal/models"
)

// Source yields one page (1-based) of raw records for a search query.
type Source interface {
	Fetch(ctx context.Context, query string, page int) ([]models.RawJob, error)
}

// pageSizer is implemented by sources with a fixed page size; a shorter page
// is the last one.
type pageSizer interface {
	PageSize() int
}

// Collect pages through every query. A query stops at an empty or short page,
// after maxPages pages, or once maxResults new records were taken for it.
// Records whose id was already collected in this call are skipped. On error
// the records gathered so far are returned with it.
func Collect(ctx context.Context, src Source, queries []string, maxPages, maxResults int) ([]models.RawJob, error) {
	size := 0
	if ps, ok := src.(pageSizer); ok {
		size = ps.PageSize()
	}

	seen := make(map[string]struct{})
	var out []models.RawJob

	for _, query := range queries {
		got := 0
	pages:
		for page := 1; page <= maxPages && got < maxResults; page++ {
			if err := ctx.Err(); err != nil {
				return out, err
			}

			batch, err := src.Fetch(ctx, query, page)
			if err != nil {
				return out, fmt.Errorf("query %q page %d: %w", query, page, err)
			}
			if len(batch) == 0 {
				break
			}

			for _, job := range batch {
				if job.ID != "" {
					if _, dup := seen[job.ID]; dup {
						continue
					}
					seen[job.ID] = struct{}{}
				}
				out = append(out, job)
				got++
				if got >= maxResults {
					break pages
				}
			}

			if size > 0 && len(batch) < size {
				break
			}
		}
	}

	return out, nil
}
