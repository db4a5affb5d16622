// Package pagination drives paginated upstream listings to completion.
package pagination

import (
	"context"
	"log/slog"
)

const (
	// DefaultPageSize is used when a non-positive page size is given.
	DefaultPageSize = 100

	// DefaultMaxTotal caps accumulated results when no cap is given.
	DefaultMaxTotal = 10000
)

// Meta is the metadata block of a paginated response.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Page is one page of a {data, meta} response.
type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

// Fetcher returns page number page (0-based) holding at most limit items.
type Fetcher[T any] func(ctx context.Context, page, limit int) (Page[T], error)

// FetchAll calls fetch for pages 0, 1, 2... and concatenates the results in
// order. It stops when the accumulated count reaches the reported total, when
// it reaches maxTotal, when the server reports no total (one page only), or
// when a page comes back empty. Results beyond maxTotal are dropped and the
// truncation is logged. A fetch error is returned unchanged.
func FetchAll[T any](ctx context.Context, fetch Fetcher[T], pageSize, maxTotal int) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}

	var items []T
	for page := 0; ; page++ {
		res, err := fetch(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		items = append(items, res.Data...)

		total := res.Meta.Total
		if len(items) >= maxTotal {
			if len(items) > maxTotal || total > maxTotal {
				slog.WarnContext(ctx, "pagination truncated at safety limit",
					"component", "pagination",
					"limit", maxTotal,
					"reported_total", total,
					"pages", page+1,
				)
			}
			return items[:maxTotal], nil
		}
		if total <= 0 || len(items) >= total || len(res.Data) == 0 {
			break
		}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
