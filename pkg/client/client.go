// Package client provides the CRM backoffice HTTP client with retries,
// request pacing, optional page caching and paginated list aggregation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/crm-backoffice-client/pkg/cache"
	"github.com/Sternrassler/crm-backoffice-client/pkg/pagination"
	"github.com/Sternrassler/crm-backoffice-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for CRM client operations.
var (
	crmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_requests_total",
		Help: "Total CRM requests by path and status",
	}, []string{"path", "status"})

	crmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_request_duration_seconds",
		Help:    "CRM request duration in seconds by path, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"path"})

	crmErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_errors_total",
		Help: "Total CRM errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// maxErrorBody caps how much of an error response body is kept in RemoteError.
const maxErrorBody = 4096

// Client is the CRM backoffice client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	aggregator  *pagination.Aggregator
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the backoffice API root, e.g. "https://app.crm.com/backoffice/v2"
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout is the overall per-request timeout
	Timeout time.Duration

	// DefaultPageSize is requested when a PageRequest does not set one
	DefaultPageSize int

	// Debug logs response bodies at debug level
	Debug bool

	// Retry applies to GET and HEAD requests only
	Retry RetryConfig

	// Rate limiting (0 = unlimited)
	RateLimit      float64
	RateLimitBurst int

	// FailOnCooldown returns ratelimit.ErrCooldown instead of waiting out a
	// backend Retry-After window
	FailOnCooldown bool

	// Redis enables the page cache and shared cooldown state (optional)
	Redis *redis.Client

	// CacheTTL is the page cache TTL (0 disables caching)
	CacheTTL time.Duration

	// Pagination configures the aggregator used by FetchAll*
	Pagination pagination.Config

	// Logger is the base logger (default: global logger)
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		UserAgent:       "crm-backoffice-client/0.1.0",
		Timeout:         60 * time.Second,
		DefaultPageSize: pagination.DefaultPageSize,
		Retry:           DefaultRetryConfig(),
		Pagination:      pagination.DefaultConfig(),
	}
}

// New creates a new CRM client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = pagination.DefaultPageSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crm-backoffice-client/0.1.0"
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}
	cfg.Retry = cfg.Retry.normalize()

	// Initialize logger
	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	logger := base.With().Str("component", "crm-client").Logger()

	rateLimiter := ratelimit.NewTracker(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit,
		Burst:             cfg.RateLimitBurst,
		FailOnCooldown:    cfg.FailOnCooldown,
	}, cfg.Redis, logger)

	var cacheManager *cache.Manager
	if cfg.Redis != nil && cfg.CacheTTL > 0 {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     baseURL,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		config:      cfg,
		logger:      logger,
	}

	aggCfg := cfg.Pagination
	if aggCfg.Logger == nil {
		aggCfg.Logger = &base
	}
	c.aggregator = pagination.NewAggregator(c, aggCfg)

	return c, nil
}

// Do performs an HTTP request with pacing, retries and error classification.
// Any non-2xx status is returned as *RemoteError (wrapped in
// ErrRetryExhausted when retries ran out); the response body of a
// successful call must be closed by the caller.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	path := req.URL.Path

	startTime := time.Now()
	defer func() {
		crmRequestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	logger := c.logger.With().
		Str("path", path).
		Str("method", req.Method).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Logger()

	logger.Debug().Str("query", req.URL.RawQuery).Msg("Executing CRM request")

	var resp *http.Response
	var errClass ErrorClass
	attempt := 0

	retryErr := retryWithBackoff(ctx, c.config.Retry.forMethod(req.Method), logger, func() error {
		attempt++
		errClass = ""

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		attemptReq, err := rewindRequest(req, attempt)
		if err != nil {
			return err
		}

		r, err := c.httpClient.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				// Caller gave up - not retryable
				return err
			}
			errClass = ErrorClassNetwork
			crmErrorsTotal.WithLabelValues(string(errClass)).Inc()
			crmRequestsTotal.WithLabelValues(path, "network_error").Inc()
			logger.Warn().Err(err).Int("attempt", attempt).Msg("HTTP request failed")
			return err
		}

		if err := c.rateLimiter.UpdateFromResponse(ctx, r); err != nil {
			logger.Warn().Err(err).Msg("Failed to update cooldown from response")
		}

		crmRequestsTotal.WithLabelValues(path, strconv.Itoa(r.StatusCode)).Inc()

		if r.StatusCode < 200 || r.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
			r.Body.Close()

			errClass = classifyStatus(r.StatusCode)
			crmErrorsTotal.WithLabelValues(string(errClass)).Inc()

			logger.Warn().
				Int("status_code", r.StatusCode).
				Str("error_class", string(errClass)).
				Int("attempt", attempt).
				Msg("CRM request error")
			if c.config.Debug {
				logger.Debug().Str("body", string(body)).Msg("Error response body")
			}

			return &RemoteError{
				StatusCode: r.StatusCode,
				ErrorClass: errClass,
				Path:       path,
				Body:       string(body),
			}
		}

		resp = r
		return nil
	}, func(error) ErrorClass {
		return errClass
	})

	if retryErr != nil {
		return nil, retryErr
	}
	return resp, nil
}

// rewindRequest returns the request to send for the given attempt. Retries
// need a fresh body.
func rewindRequest(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replay request body: %w", err)
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, nil
}

// classifyStatus categorizes a non-success status for observability and retries.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// newRequest builds a request for path relative to the base URL.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, headers http.Header, body []byte) (*http.Request, error) {
	if method == "" {
		method = http.MethodGet
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// FetchPage fetches one page of a list endpoint and normalizes the envelope.
// It implements pagination.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, preq pagination.PageRequest) (*pagination.Page, error) {
	method := preq.Method
	if method == "" {
		method = http.MethodGet
	}

	query := url.Values{}
	for k, v := range preq.Query {
		query[k] = append([]string(nil), v...)
	}

	size := preq.PageSize
	if size <= 0 {
		if s, err := strconv.Atoi(query.Get("size")); err == nil && s > 0 {
			size = s
		} else {
			size = c.config.DefaultPageSize
		}
	}
	query.Set("size", strconv.Itoa(size))
	if preq.PageNumber > 0 {
		query.Set("page", strconv.Itoa(preq.PageNumber))
	}

	logger := c.logger.With().Str("path", preq.Path).Int("page", preq.PageNumber).Logger()

	// Check cache
	cacheable := c.cache != nil && method == http.MethodGet
	cacheKey := cache.CacheKey{
		Method: method,
		Path:   preq.Path,
		Query:  query,
		Scope:  cache.ScopeFromHeaders(preq.Headers),
	}
	if cacheable {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			page, decodeErr := decodePage(entry.Data, preq.Path, preq.PageNumber, size)
			if decodeErr == nil {
				logger.Debug().Dur("age", entry.Age()).Msg("Page served from cache")
				return c.checkPage(page, logger), nil
			}
			logger.Warn().Err(decodeErr).Msg("Dropping undecodable cache entry")
			_ = c.cache.Delete(ctx, cacheKey)
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	req, err := c.newRequest(ctx, method, preq.Path, query, preq.Headers, preq.Body)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if c.config.Debug {
		logger.Debug().Str("body", string(body)).Msg("Response body")
	}

	page, err := decodePage(body, preq.Path, preq.PageNumber, size)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if ttl := cache.TTLFromHeaders(resp.Header, c.config.CacheTTL); ttl > 0 {
			if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(body, ttl)); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache page")
			}
		}
	}

	return c.checkPage(page, logger), nil
}

// checkPage enforces len(Items) <= PageSize.
func (c *Client) checkPage(page *pagination.Page, logger zerolog.Logger) *pagination.Page {
	if page.Len() > page.PageSize {
		logger.Warn().
			Int("items", page.Len()).
			Int("page_size", page.PageSize).
			Msg("Backend returned more items than its page size")
		page.PageSize = page.Len()
	}
	return page
}

// Get fetches a single entity (e.g. "/contacts/{id}") and returns its raw JSON.
func (c *Client) Get(ctx context.Context, path string, query url.Values, headers http.Header) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, headers, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if c.config.Debug {
		c.logger.Debug().Str("path", path).Str("body", string(body)).Msg("Response body")
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("response from %s is not valid JSON", path)
	}
	return json.RawMessage(body), nil
}

// FetchAllSequential fetches every page of tmpl in order.
func (c *Client) FetchAllSequential(ctx context.Context, tmpl pagination.PageRequest) (*pagination.AggregateResult, error) {
	return c.aggregator.FetchAllSequential(ctx, tmpl)
}

// FetchAllParallel fetches every page of tmpl with up to concurrency
// requests in flight (the configured default when <= 0).
func (c *Client) FetchAllParallel(ctx context.Context, tmpl pagination.PageRequest, concurrency int) (*pagination.AggregateResult, error) {
	return c.aggregator.FetchAllParallel(ctx, tmpl, concurrency)
}

// InvalidateCache drops every cached page of path. It is a no-op without a cache.
func (c *Client) InvalidateCache(ctx context.Context, path string) error {
	if c.cache == nil {
		return nil
	}
	removed, err := c.cache.DeletePrefix(ctx, cache.PathPrefix(http.MethodGet, path))
	if err != nil {
		return err
	}
	c.logger.Debug().Str("path", path).Int("removed", removed).Msg("Cache invalidated")
	return nil
}

// Aggregator returns the aggregator bound to this client.
func (c *Client) Aggregator() *pagination.Aggregator {
	return c.aggregator
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing). The configured
// timeout is applied when the custom client has none.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client.Timeout == 0 {
		client.Timeout = c.config.Timeout
	}
	c.httpClient = client
}
