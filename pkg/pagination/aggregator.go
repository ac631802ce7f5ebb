package pagination

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds aggregator configuration.
type Config struct {
	// Concurrency is the default worker pool width for parallel aggregation.
	Concurrency int

	// PageTimeout bounds each worker-pool page fetch.
	PageTimeout time.Duration

	// MaxPages stops a sequential walk against a backend that never reports
	// has_more=false.
	MaxPages int

	// ProbeMultiplier is the growth factor of the exponential probe (1, 10, 100, ...).
	ProbeMultiplier int

	// ProbeIterations is the maximum number of exponential probes.
	ProbeIterations int

	// DisableFallback makes FetchAllParallel return ErrBoundsNotFound instead
	// of falling back to a sequential walk.
	DisableFallback bool

	// Logger is the base logger (default: global logger with component=pagination).
	Logger *zerolog.Logger
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:     6,
		PageTimeout:     60 * time.Second,
		MaxPages:        10000,
		ProbeMultiplier: 10,
		ProbeIterations: 10,
	}
}

// Aggregator drives a PageFetcher to collect every page of a list endpoint.
// It holds no per-call state and is safe for concurrent use.
type Aggregator struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewAggregator creates a new aggregator. Zero config fields take their defaults.
func NewAggregator(fetcher PageFetcher, config Config) *Aggregator {
	def := DefaultConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = def.PageTimeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = def.MaxPages
	}
	if config.ProbeMultiplier < 2 {
		config.ProbeMultiplier = def.ProbeMultiplier
	}
	if config.ProbeIterations <= 0 {
		config.ProbeIterations = def.ProbeIterations
	}

	logger := log.With().Str("component", "pagination").Logger()
	if config.Logger != nil {
		logger = config.Logger.With().Str("component", "pagination").Logger()
	}

	return &Aggregator{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config {
	return a.config
}

// callLogger returns a logger tagged with a fresh aggregation id.
func (a *Aggregator) callLogger(tmpl PageRequest, strategy string) zerolog.Logger {
	return a.logger.With().
		Str("aggregation_id", uuid.NewString()).
		Str("strategy", strategy).
		Str("path", tmpl.Path).
		Logger()
}

// fetch performs one backend fetch for req and records it under phase.
func (a *Aggregator) fetch(ctx context.Context, req PageRequest, phase string) (*Page, error) {
	page, err := a.fetcher.FetchPage(ctx, req)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page %d: fetcher returned no page", req.PageNumber)
	}
	pagesFetchedTotal.WithLabelValues(phase).Inc()
	return page, nil
}

// pageAt returns page req.PageNumber from pages, fetching and recording it
// only if it is not there yet. Not safe for concurrent use.
func (a *Aggregator) pageAt(ctx context.Context, req PageRequest, pages map[int]*Page, phase string) (*Page, bool, error) {
	if page, ok := pages[req.PageNumber]; ok {
		pagesReusedTotal.Inc()
		return page, false, nil
	}
	page, err := a.fetch(ctx, req, phase)
	if err != nil {
		return nil, false, err
	}
	pages[req.PageNumber] = page
	return page, true, nil
}

// pinPageSize returns tmpl with the page size the backend actually served on
// its first page. Backends silently clamp oversized requests.
func pinPageSize(tmpl PageRequest, first *Page) PageRequest {
	if first == nil || first.PageSize <= 0 || first.PageSize == tmpl.EffectivePageSize() {
		return tmpl
	}
	return tmpl.WithPageSize(first.PageSize)
}

// prunePages drops every page above last. Probe overshoot pages are empty.
func prunePages(pages map[int]*Page, last int) {
	for n := range pages {
		if n > last {
			delete(pages, n)
		}
	}
}

// nextProbe returns page*multiplier, or false on overflow.
func nextProbe(page, multiplier int) (int, bool) {
	if page > math.MaxInt/multiplier {
		return 0, false
	}
	return page * multiplier, true
}

// failureReason classifies an aggregation error for metrics.
func failureReason(err error) string {
	var partial *PartialFetchError
	switch {
	case errors.As(err, &partial):
		return "partial_fetch"
	case errors.Is(err, ErrBoundsNotFound):
		return "bounds_not_found"
	case errors.Is(err, ErrMaxPagesExceeded):
		return "max_pages"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return "fetch"
	}
}

// finish records metrics and logs the outcome of an aggregation.
func (a *Aggregator) finish(logger zerolog.Logger, strategy string, start time.Time, res *AggregateResult, err error) (*AggregateResult, error) {
	if err != nil {
		aggregationFailuresTotal.WithLabelValues(strategy, failureReason(err)).Inc()
		logger.Warn().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Aggregation failed")
		return nil, err
	}

	aggregationDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	logger.Info().
		Int("pages", res.PageCount).
		Int("total", res.Total).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")
	return res, nil
}
