package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

// fakeBackend is an in-memory paginated list endpoint.
type fakeBackend struct {
	mu    sync.Mutex
	items []json.RawMessage

	// maxPageSize clamps requested sizes like the real backend (0 = no clamp)
	maxPageSize int

	// lazyHasMore reports has_more=true for every full page, even the last one
	lazyHasMore bool

	// endless reports has_more=true forever
	endless bool

	failPages  map[int]error
	blockPages map[int]bool
	calls      map[int]int
}

func newFakeBackend(n int) *fakeBackend {
	items := make([]json.RawMessage, n)
	for i := range items {
		items[i] = json.RawMessage(fmt.Sprintf(`{"id":%d}`, i+1))
	}
	return &fakeBackend{
		items:      items,
		failPages:  make(map[int]error),
		blockPages: make(map[int]bool),
		calls:      make(map[int]int),
	}
}

func (b *fakeBackend) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	n := req.PageNumber
	if n == 0 {
		n = 1
	}

	b.mu.Lock()
	b.calls[n]++
	failErr := b.failPages[n]
	block := b.blockPages[n]
	b.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failErr != nil {
		return nil, failErr
	}

	size := req.EffectivePageSize()
	if b.maxPageSize > 0 && size > b.maxPageSize {
		size = b.maxPageSize
	}

	page := &Page{PageNumber: n, PageSize: size}
	start := (n - 1) * size
	if start < len(b.items) {
		end := min(start+size, len(b.items))
		page.Items = b.items[start:end]
	}

	switch {
	case b.endless:
		page.HasMore = true
	case b.lazyHasMore:
		page.HasMore = page.Len() == size
	default:
		page.HasMore = start+size < len(b.items)
	}

	total := len(b.items)
	page.DeclaredTotal = &total
	return page, nil
}

func (b *fakeBackend) callCount(page int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[page]
}

func (b *fakeBackend) totalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, c := range b.calls {
		total += c
	}
	return total
}

func (b *fakeBackend) duplicateFetches() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var dups []int
	for page, c := range b.calls {
		if c > 1 {
			dups = append(dups, page)
		}
	}
	return dups
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Concurrency = 4
	return cfg
}

func itemIDs(t *testing.T, res *AggregateResult) []int {
	t.Helper()

	type item struct {
		ID int `json:"id"`
	}
	decoded, err := DecodeItems[item](res)
	if err != nil {
		t.Fatalf("DecodeItems() error = %v", err)
	}
	ids := make([]int, len(decoded))
	for i, it := range decoded {
		ids[i] = it.ID
	}
	return ids
}
