package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrCooldown is returned by Wait when a cooldown is active and the tracker
// is configured to fail fast.
var ErrCooldown = errors.New("backend cooldown active")

// Prometheus metrics for rate limiting.
var (
	crmRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crm_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the local request pacer",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	crmCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_rate_limit_cooldowns_total",
		Help: "Total number of cooldown windows opened by Retry-After responses",
	})

	crmCooldownBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_rate_limit_cooldown_blocks_total",
		Help: "Total number of requests delayed or rejected by an active cooldown",
	})
)

// Config holds tracker configuration.
type Config struct {
	// RequestsPerSecond paces outgoing requests (0 = unlimited)
	RequestsPerSecond float64

	// Burst is the token bucket size (default 1 when pacing is enabled)
	Burst int

	// FailOnCooldown makes Wait return ErrCooldown instead of sleeping
	FailOnCooldown bool
}

// Tracker paces requests and gates them on backend cooldowns.
type Tracker struct {
	limiter *rate.Limiter
	redis   *redis.Client
	config  Config
	logger  zerolog.Logger

	mu            sync.Mutex
	cooldownUntil time.Time
}

// NewTracker creates a new tracker. redisClient may be nil, in which case
// cooldowns are tracked in-process only.
func NewTracker(cfg Config, redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t
}

// GetState returns the current cooldown, preferring the later of the local
// and the shared (Redis) window.
func (t *Tracker) GetState(ctx context.Context) (*CooldownState, error) {
	t.mu.Lock()
	state := &CooldownState{Until: t.cooldownUntil, Source: "local"}
	t.mu.Unlock()

	if t.redis == nil {
		return state, nil
	}

	untilNanos, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return state, nil
		}
		return state, fmt.Errorf("get cooldown: %w", err)
	}

	if shared := time.Unix(0, untilNanos); shared.After(state.Until) {
		state = &CooldownState{Until: shared, Source: "redis"}
	}
	return state, nil
}

// Wait blocks until a request may be sent: first until any active cooldown
// has passed, then until the local pacer releases a token.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		// Shared state unavailable - fall back to the local window
		t.logger.Warn().Err(err).Msg("Failed to read shared cooldown state")
	}

	if state.Active() {
		crmCooldownBlocksTotal.Inc()
		remaining := state.Remaining()

		if t.config.FailOnCooldown {
			return fmt.Errorf("%w: %s remaining", ErrCooldown, remaining.Round(time.Millisecond))
		}

		t.logger.Warn().
			Dur("wait_duration", remaining).
			Str("source", state.Source).
			Msg("Backend cooldown active - delaying request")

		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if t.limiter == nil {
		return nil
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	crmRateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// UpdateFromResponse opens a cooldown window when the backend answers 429 or
// 503 with a Retry-After header. Other responses are ignored.
func (t *Tracker) UpdateFromResponse(ctx context.Context, resp *http.Response) error {
	if resp == nil {
		return nil
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return nil
	}

	delay, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	if !ok || delay <= 0 {
		return nil
	}
	until := time.Now().Add(delay)

	t.mu.Lock()
	if until.After(t.cooldownUntil) {
		t.cooldownUntil = until
	}
	t.mu.Unlock()

	crmCooldownsTotal.Inc()
	t.logger.Warn().
		Int("status_code", resp.StatusCode).
		Dur("retry_after", delay).
		Time("until", until).
		Msg("Backend requested cooldown")

	if t.redis == nil {
		return nil
	}

	// Only extend the shared window, never shorten it
	err := t.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, RedisKeyCooldownUntil).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current >= until.UnixNano() {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, RedisKeyCooldownUntil, strconv.FormatInt(until.UnixNano(), 10), delay)
			return nil
		})
		return err
	}, RedisKeyCooldownUntil)
	if err != nil {
		return fmt.Errorf("store cooldown in redis: %w", err)
	}
	return nil
}

// Reset clears the local and shared cooldown.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	t.cooldownUntil = time.Time{}
	t.mu.Unlock()

	if t.redis == nil {
		return nil
	}
	if err := t.redis.Del(ctx, RedisKeyCooldownUntil).Err(); err != nil {
		return fmt.Errorf("reset cooldown: %w", err)
	}
	return nil
}
