package pagination

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestProbeBounds(t *testing.T) {
	tests := []struct {
		name         string
		items        int
		pageSize     int
		lazyHasMore  bool
		wantLastPage int
		wantLastSize int
		wantErr      error
	}{
		{
			name:         "last page 37 found by binary search",
			items:        364,
			pageSize:     10,
			wantLastPage: 37,
			wantLastSize: 4,
		},
		{
			name:         "terminates on probe boundary",
			items:        95,
			pageSize:     10,
			wantLastPage: 10,
			wantLastSize: 5,
		},
		{
			name:         "single page",
			items:        4,
			pageSize:     10,
			wantLastPage: 1,
			wantLastSize: 4,
		},
		{
			name:         "exact multiple of page size",
			items:        30,
			pageSize:     10,
			wantLastPage: 3,
			wantLastSize: 10,
		},
		{
			name:         "empty result set",
			items:        0,
			pageSize:     10,
			wantLastPage: 1,
			wantLastSize: 0,
		},
		{
			name:        "has_more true on last full page cannot be resolved",
			items:       30,
			pageSize:    10,
			lazyHasMore: true,
			wantErr:     ErrBoundsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend(tt.items)
			backend.lazyHasMore = tt.lazyHasMore
			agg := NewAggregator(backend, testConfig())

			pages := make(map[int]*Page)
			got, err := agg.ProbeBounds(context.Background(), PageRequest{Path: "/contacts", PageSize: tt.pageSize}, pages)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ProbeBounds() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ProbeBounds() error = %v", err)
			}
			if got.LastPage != tt.wantLastPage {
				t.Errorf("LastPage = %d, want %d", got.LastPage, tt.wantLastPage)
			}
			if got.LastPageSize != tt.wantLastSize {
				t.Errorf("LastPageSize = %d, want %d", got.LastPageSize, tt.wantLastSize)
			}
			if _, ok := pages[got.LastPage]; !ok {
				t.Errorf("last page %d not recorded in pages", got.LastPage)
			}
			if dups := backend.duplicateFetches(); len(dups) > 0 {
				t.Errorf("pages fetched more than once: %v", dups)
			}
		})
	}
}

func TestProbeBounds_CallBudget(t *testing.T) {
	backend := newFakeBackend(364)
	agg := NewAggregator(backend, testConfig())

	got, err := agg.ProbeBounds(context.Background(), PageRequest{Path: "/contacts", PageSize: 10}, nil)
	if err != nil {
		t.Fatalf("ProbeBounds() error = %v", err)
	}
	if got.LastPage != 37 {
		t.Fatalf("LastPage = %d, want 37", got.LastPage)
	}

	// 10 exponential probes plus ceil(log2(10)) search steps
	budget := 10 + int(math.Ceil(math.Log2(10)))
	if calls := backend.totalCalls(); calls > budget {
		t.Errorf("probe used %d fetches, want <= %d", calls, budget)
	}
}

func TestProbeBounds_EmptyFirstPageSkipsSearch(t *testing.T) {
	backend := newFakeBackend(0)
	agg := NewAggregator(backend, testConfig())

	got, err := agg.ProbeBounds(context.Background(), PageRequest{Path: "/contacts"}, nil)
	if err != nil {
		t.Fatalf("ProbeBounds() error = %v", err)
	}
	if got != (BoundsResult{LastPage: 1, LastPageSize: 0}) {
		t.Errorf("ProbeBounds() = %+v, want {1 0}", got)
	}
	if calls := backend.totalCalls(); calls != 1 {
		t.Errorf("expected a single fetch, got %d", calls)
	}
}

func TestProbeBounds_IterationsExhausted(t *testing.T) {
	backend := newFakeBackend(364)
	cfg := testConfig()
	cfg.ProbeIterations = 2
	agg := NewAggregator(backend, cfg)

	_, err := agg.ProbeBounds(context.Background(), PageRequest{Path: "/contacts", PageSize: 10}, nil)
	if !errors.Is(err, ErrBoundsNotFound) {
		t.Fatalf("ProbeBounds() error = %v, want ErrBoundsNotFound", err)
	}
	if calls := backend.totalCalls(); calls != 2 {
		t.Errorf("expected 2 probes (pages 1 and 10), got %d", calls)
	}
}

func TestProbeBounds_ReusesKnownPages(t *testing.T) {
	backend := newFakeBackend(364)
	agg := NewAggregator(backend, testConfig())
	tmpl := PageRequest{Path: "/contacts", PageSize: 10}

	pages := make(map[int]*Page)
	if _, err := agg.ProbeBounds(context.Background(), tmpl, pages); err != nil {
		t.Fatalf("first ProbeBounds() error = %v", err)
	}
	before := backend.totalCalls()

	got, err := agg.ProbeBounds(context.Background(), tmpl, pages)
	if err != nil {
		t.Fatalf("second ProbeBounds() error = %v", err)
	}
	if got.LastPage != 37 {
		t.Errorf("LastPage = %d, want 37", got.LastPage)
	}
	if after := backend.totalCalls(); after != before {
		t.Errorf("second probe fetched %d new pages, want 0", after-before)
	}
}

func TestProbeBounds_FetchError(t *testing.T) {
	backend := newFakeBackend(364)
	boom := errors.New("remote 503")
	backend.failPages[10] = boom
	agg := NewAggregator(backend, testConfig())

	_, err := agg.ProbeBounds(context.Background(), PageRequest{Path: "/contacts", PageSize: 10}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("ProbeBounds() error = %v, want %v", err, boom)
	}
	if errors.Is(err, ErrBoundsNotFound) {
		t.Error("fetch errors must not be reported as ErrBoundsNotFound")
	}
}

func TestNextProbe_Overflow(t *testing.T) {
	if _, ok := nextProbe(math.MaxInt/2, 10); ok {
		t.Error("expected overflow to be detected")
	}
	if got, ok := nextProbe(100, 10); !ok || got != 1000 {
		t.Errorf("nextProbe(100, 10) = %d, %v; want 1000, true", got, ok)
	}
}
