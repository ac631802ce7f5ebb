package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// DefaultPageSize is the page size requested when the template does not set one.
const DefaultPageSize = 100

// PageFetcher is the interface the CRM client must implement for single-page fetching.
type PageFetcher interface {
	// FetchPage issues one request for one page and normalizes the response envelope.
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// PageFetcherFunc adapts a function to the PageFetcher interface.
type PageFetcherFunc func(ctx context.Context, req PageRequest) (*Page, error)

// FetchPage calls f(ctx, req).
func (f PageFetcherFunc) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	return f(ctx, req)
}

// PageRequest describes a single page request against a list endpoint.
// Treat it as a value: use WithPage and WithPageSize to derive variants.
type PageRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte

	// PageSize is the requested number of items per page (0 = DefaultPageSize).
	PageSize int

	// PageNumber is the 1-based page to fetch (0 = let the backend decide).
	PageNumber int
}

// WithPage returns a copy of r targeting page n.
func (r PageRequest) WithPage(n int) PageRequest {
	c := r.clone()
	c.PageNumber = n
	return c
}

// WithPageSize returns a copy of r requesting size items per page.
func (r PageRequest) WithPageSize(size int) PageRequest {
	c := r.clone()
	c.PageSize = size
	return c
}

// EffectivePageSize returns the page size that will be requested.
func (r PageRequest) EffectivePageSize() int {
	if r.PageSize > 0 {
		return r.PageSize
	}
	return DefaultPageSize
}

func (r PageRequest) clone() PageRequest {
	c := r
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	if r.Headers != nil {
		c.Headers = r.Headers.Clone()
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return c
}

// Page is one fetched page of a list endpoint. Pages are never mutated after
// the fetch that produced them.
type Page struct {
	Items      []json.RawMessage
	PageNumber int
	PageSize   int
	HasMore    bool

	// DeclaredTotal is the total reported by the backend, if any.
	// It is informational only and never used to size an aggregation.
	DeclaredTotal *int
}

// Len returns the number of items on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

// AggregateResult is the merged content of all pages of one aggregation.
// Total always equals len(Items).
type AggregateResult struct {
	Items     []json.RawMessage
	PageCount int
	Total     int
}

// BoundsResult is the outcome of a successful bounds probe.
type BoundsResult struct {
	LastPage     int
	LastPageSize int
}

// DecodeItems unmarshals every item of an aggregate into T, preserving order.
func DecodeItems[T any](res *AggregateResult) ([]T, error) {
	if res == nil {
		return nil, nil
	}
	out := make([]T, 0, len(res.Items))
	for i, raw := range res.Items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
