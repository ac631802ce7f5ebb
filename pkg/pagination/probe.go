package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ProbeBounds locates the last populated page of tmpl without trusting any
// declared total.
//
// Pages 1, m, m^2, ... (m = Config.ProbeMultiplier) are probed until one
// reports has_more=false. A non-empty terminal page is the answer. An empty
// one means the probe overshot, and the boundary is binary searched between
// the previous probe and the overshoot:
//   - has_more=false with items: answer
//   - has_more=false without items: boundary is lower
//   - has_more=true: boundary is higher
//
// Every fetched page is stored in pages (which may be nil) and pages already
// present are not fetched again. ErrBoundsNotFound is returned when no
// terminal page is found within Config.ProbeIterations probes or the search
// bounds cross.
func (a *Aggregator) ProbeBounds(ctx context.Context, tmpl PageRequest, pages map[int]*Page) (BoundsResult, error) {
	return a.probeBounds(ctx, tmpl, pages, a.callLogger(tmpl, strategyProbe))
}

// probeBounds is ProbeBounds logging through the logger of the calling
// aggregation.
func (a *Aggregator) probeBounds(ctx context.Context, tmpl PageRequest, pages map[int]*Page, logger zerolog.Logger) (BoundsResult, error) {
	if pages == nil {
		pages = make(map[int]*Page)
	}

	fetches := 0
	get := func(n int) (*Page, error) {
		page, fetched, err := a.pageAt(ctx, tmpl.WithPage(n), pages, phaseProbe)
		if err != nil {
			return nil, fmt.Errorf("probe page %d: %w", n, err)
		}
		if fetched {
			fetches++
		}
		return page, nil
	}
	defer func() {
		boundsProbeFetches.Observe(float64(fetches))
	}()

	mult := a.config.ProbeMultiplier

	// Exponential phase
	var stopped *Page
	pageNum := 1
	for i := 0; i < a.config.ProbeIterations; i++ {
		if i > 0 {
			next, ok := nextProbe(pageNum, mult)
			if !ok {
				break
			}
			pageNum = next
		}

		page, err := get(pageNum)
		if err != nil {
			return BoundsResult{}, err
		}
		if pageNum == 1 {
			tmpl = pinPageSize(tmpl, page)
		}

		logger.Debug().
			Int("page", pageNum).
			Bool("has_more", page.HasMore).
			Int("items", page.Len()).
			Msg("Bounds probe")

		if !page.HasMore {
			stopped = page
			break
		}
	}

	if stopped == nil {
		return BoundsResult{}, fmt.Errorf("%w: no terminal page up to page %d", ErrBoundsNotFound, pageNum)
	}

	// Terminated exactly on a probe boundary
	if stopped.Len() > 0 {
		return BoundsResult{LastPage: pageNum, LastPageSize: stopped.Len()}, nil
	}

	// Empty result set
	if pageNum == 1 {
		return BoundsResult{LastPage: 1, LastPageSize: 0}, nil
	}

	// Binary search phase: lo reported has_more=true, hi is known empty
	lo, hi := pageNum/mult, pageNum
	for lo <= hi {
		mid := lo + (hi-lo)/2
		page, err := get(mid)
		if err != nil {
			return BoundsResult{}, err
		}

		logger.Debug().
			Int("page", mid).
			Int("lo", lo).
			Int("hi", hi).
			Bool("has_more", page.HasMore).
			Int("items", page.Len()).
			Msg("Bounds search")

		switch {
		case !page.HasMore && page.Len() > 0:
			return BoundsResult{LastPage: mid, LastPageSize: page.Len()}, nil
		case !page.HasMore:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}

	return BoundsResult{}, fmt.Errorf("%w: search between pages %d and %d did not resolve", ErrBoundsNotFound, pageNum/mult, pageNum)
}
