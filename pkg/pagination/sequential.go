package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// FetchAllSequential fetches every page of tmpl in order, starting at page 1,
// until the backend reports has_more=false. Any failure aborts the whole
// aggregation; no partial result is returned.
func (a *Aggregator) FetchAllSequential(ctx context.Context, tmpl PageRequest) (*AggregateResult, error) {
	start := time.Now()
	logger := a.callLogger(tmpl, strategySequential)

	pages := make(map[int]*Page)
	last, err := a.walk(ctx, tmpl, pages, logger)
	if err != nil {
		return a.finish(logger, strategySequential, start, nil, err)
	}
	prunePages(pages, last)

	return a.finish(logger, strategySequential, start, Merge(pages), nil)
}

// walk fetches pages 1, 2, 3, ... into pages until has_more=false and returns
// the number of the terminal page. Pages already present are reused.
func (a *Aggregator) walk(ctx context.Context, tmpl PageRequest, pages map[int]*Page, logger zerolog.Logger) (int, error) {
	first, _, err := a.pageAt(ctx, tmpl.WithPage(1), pages, phaseSequential)
	if err != nil {
		return 0, fmt.Errorf("fetch first page: %w", err)
	}

	logger.Debug().
		Int("page_size", first.PageSize).
		Bool("has_more", first.HasMore).
		Int("items", first.Len()).
		Msg("First page fetched")

	if !first.HasMore {
		return 1, nil
	}

	pinned := pinPageSize(tmpl, first)
	if pinned.PageSize != tmpl.PageSize {
		logger.Debug().
			Int("requested", tmpl.EffectivePageSize()).
			Int("served", pinned.PageSize).
			Msg("Pinning page size served by backend")
	}

	for n := 2; ; n++ {
		if n > a.config.MaxPages {
			return 0, fmt.Errorf("%w: no terminal page within %d pages", ErrMaxPagesExceeded, a.config.MaxPages)
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		page, fetched, err := a.pageAt(ctx, pinned.WithPage(n), pages, phaseSequential)
		if err != nil {
			return 0, fmt.Errorf("fetch page %d: %w", n, err)
		}

		logger.Debug().
			Int("page", n).
			Bool("fetched", fetched).
			Bool("has_more", page.HasMore).
			Int("items", page.Len()).
			Msg("Page walked")

		if !page.HasMore {
			return n, nil
		}
	}
}
