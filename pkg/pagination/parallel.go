package pagination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// pageStore is the per-aggregation result map shared by workers. Each page
// number is written by exactly one worker.
type pageStore struct {
	mu    sync.Mutex
	pages map[int]*Page
	added int
}

func (s *pageStore) put(n int, page *Page) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[n] = page
	s.added++
	return s.added
}

func (s *pageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.added
}

// FetchAllParallel fetches every page of tmpl using a worker pool of
// concurrency workers (Config.Concurrency when <= 0).
//
// The page count is discovered with ProbeBounds first. Pages fetched by the
// probe are reused, the rest are fetched concurrently, and items are
// assembled in ascending page order. A page that fails after the client's
// retries cancels the remaining workers and fails the call with a
// PartialFetchError.
func (a *Aggregator) FetchAllParallel(ctx context.Context, tmpl PageRequest, concurrency int) (*AggregateResult, error) {
	if concurrency <= 0 {
		concurrency = a.config.Concurrency
	}

	start := time.Now()
	logger := a.callLogger(tmpl, strategyParallel)

	pages := make(map[int]*Page)
	bounds, err := a.probeBounds(ctx, tmpl, pages, logger)
	if err != nil {
		if !errors.Is(err, ErrBoundsNotFound) || a.config.DisableFallback {
			return a.finish(logger, strategyParallel, start, nil, err)
		}

		logger.Warn().
			Err(err).
			Int("probed_pages", len(pages)).
			Msg("Bounds probe failed - falling back to sequential fetch")
		sequentialFallbacksTotal.Inc()

		last, err := a.walk(ctx, tmpl, pages, logger)
		if err != nil {
			return a.finish(logger, strategyParallel, start, nil, err)
		}
		prunePages(pages, last)
		return a.finish(logger, strategyParallel, start, Merge(pages), nil)
	}

	prunePages(pages, bounds.LastPage)
	tmpl = pinPageSize(tmpl, pages[1])

	var missing []int
	for n := 1; n < bounds.LastPage; n++ {
		if _, ok := pages[n]; !ok {
			missing = append(missing, n)
		}
	}

	logger.Info().
		Int("last_page", bounds.LastPage).
		Int("probed_pages", len(pages)).
		Int("remaining_pages", len(missing)).
		Int("concurrency", concurrency).
		Msg("Starting parallel page fetch")

	if len(missing) > 0 {
		if err := a.fetchPages(ctx, tmpl, missing, pages, concurrency, logger); err != nil {
			return a.finish(logger, strategyParallel, start, nil, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return a.finish(logger, strategyParallel, start, nil, err)
	}

	for n := 1; n < bounds.LastPage; n++ {
		page, ok := pages[n]
		if !ok {
			err := &PartialFetchError{
				Page:     n,
				Fetched:  countPresent(pages, missing),
				Expected: len(missing),
				Err:      errPageMissing,
			}
			return a.finish(logger, strategyParallel, start, nil, err)
		}
		if !page.HasMore {
			logger.Warn().
				Int("page", n).
				Int("last_page", bounds.LastPage).
				Msg("Backend reported has_more=false before the last page - data set may have changed")
		}
	}

	return a.finish(logger, strategyParallel, start, Merge(pages), nil)
}

// fetchPages fetches the given page numbers into pages with a bounded worker pool.
func (a *Aggregator) fetchPages(ctx context.Context, tmpl PageRequest, missing []int, pages map[int]*Page, concurrency int, logger zerolog.Logger) error {
	store := &pageStore{pages: pages}
	expected := len(missing)

	g, gctx := errgroup.WithContext(ctx)

	// Fill page queue
	pageQueue := make(chan int)
	g.Go(func() error {
		defer close(pageQueue)
		for _, n := range missing {
			select {
			case pageQueue <- n:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// Start worker pool
	workers := min(concurrency, expected)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return a.worker(gctx, tmpl, pageQueue, store, expected, i, logger)
		})
	}

	return g.Wait()
}

// countPresent counts how many of nums are keys of pages.
func countPresent(pages map[int]*Page, nums []int) int {
	n := 0
	for _, num := range nums {
		if _, ok := pages[num]; ok {
			n++
		}
	}
	return n
}

// worker processes pages from the queue until it is drained or the
// aggregation is cancelled.
func (a *Aggregator) worker(ctx context.Context, tmpl PageRequest, pageQueue <-chan int, store *pageStore, expected, workerID int, logger zerolog.Logger) error {
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if err := ctx.Err(); err != nil {
			logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return err
		}

		pageCtx, cancel := context.WithTimeout(ctx, a.config.PageTimeout)
		page, err := a.fetch(pageCtx, tmpl.WithPage(pageNum), phaseWorker)
		cancel()

		if err != nil {
			logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed - aborting aggregation")
			return &PartialFetchError{
				Page:     pageNum,
				Fetched:  store.count(),
				Expected: expected,
				Err:      err,
			}
		}

		fetched := store.put(pageNum, page)
		pagesProcessed++

		// Progress logging every 50 pages
		if fetched%50 == 0 {
			logger.Info().
				Int("fetched", fetched).
				Int("total", expected).
				Float64("progress_pct", float64(fetched)/float64(expected)*100).
				Msg("Fetch progress")
		}
	}

	if pagesProcessed > 0 {
		logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
	return nil
}
