// Package cache provides an optional Redis-backed cache for backoffice list
// pages.
//
// Only raw response bodies of successful GET requests are stored. A page is
// keyed by method, path, sorted query parameters (which include page and
// size) and a short hash of the credentials headers, so two tenants sharing
// a Redis instance never see each other's pages.
//
// # TTL
//
// The TTL of an entry is the configured client TTL, shortened by the
// response's Cache-Control max-age or Expires header when those are
// stricter. Cache-Control no-store or no-cache disables caching for that
// response.
//
// Keep TTLs short when pages feed aggregations: a cached page 1 combined
// with freshly fetched later pages can mix two versions of the data set.
//
// # Metrics
//
//   - crm_cache_hits_total (Counter)
//   - crm_cache_misses_total (Counter)
//   - crm_cache_errors_total{operation} (Counter)
//   - crm_cache_stored_bytes_total (Counter)
//
// # Usage
//
//	manager := cache.NewManager(redisClient)
//	key := cache.CacheKey{Method: "GET", Path: "/contacts", Query: q}
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//	    // fetch and manager.Set(ctx, key, cache.NewEntry(body, ttl))
//	}
package cache
