// Package ratelimit paces requests to the CRM backoffice and honors the
// cooldown windows it announces with 429/503 Retry-After responses.
//
// Pacing is local to the process (token bucket). Cooldowns can be shared
// across processes through Redis so that a fleet of workers backs off
// together once the backend starts shedding load.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Redis keys for shared cooldown state.
const (
	RedisKeyCooldownUntil = "crm:rate_limit:cooldown_until"
)

// MaxCooldown caps a single cooldown window regardless of Retry-After.
const MaxCooldown = 5 * time.Minute

// CooldownState represents the current backend cooldown.
type CooldownState struct {
	// Until is when requests may resume. Zero means no cooldown.
	Until time.Time `json:"until"`

	// Source is where the state came from ("local" or "redis").
	Source string `json:"source"`
}

// Active returns true while the cooldown window is open.
func (s *CooldownState) Active() bool {
	return time.Now().Before(s.Until)
}

// Remaining returns the duration until requests may resume.
// Returns 0 if the cooldown has already passed.
func (s *CooldownState) Remaining() time.Duration {
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}

// ParseRetryAfter parses a Retry-After header value given either as
// delay-seconds or as an HTTP date. The result is capped at MaxCooldown.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		d = time.Duration(secs) * time.Second
	} else {
		at, err := http.ParseTime(value)
		if err != nil {
			return 0, false
		}
		d = max(at.Sub(now), 0)
	}

	return min(d, MaxCooldown), true
}
