package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TTLFromHeaders returns the TTL to use for a response, starting from the
// configured ttl and shortening it to honor Cache-Control and Expires.
// A zero result means the response must not be cached.
func TTLFromHeaders(headers http.Header, ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}

	if cc := headers.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.ToLower(strings.TrimSpace(directive))
			switch {
			case directive == "no-store", directive == "no-cache", directive == "private":
				return 0
			case strings.HasPrefix(directive, "max-age="):
				secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
				if err != nil {
					continue
				}
				return min(ttl, time.Duration(max(secs, 0))*time.Second)
			}
		}
	}

	// Expires is only consulted without a max-age directive
	if expiresStr := headers.Get("Expires"); expiresStr != "" {
		expires, err := http.ParseTime(expiresStr)
		if err != nil {
			// Unparseable Expires means already expired (RFC 9111)
			return 0
		}
		return min(ttl, max(time.Until(expires), 0))
	}

	return ttl
}
