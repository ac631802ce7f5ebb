// Package pagination aggregates paginated CRM backoffice list endpoints into
// a single, ordered result set.
//
// The backoffice reports paging metadata as {"page", "size", "total",
// "has_more"}, but total is not always present and cannot be trusted. The
// only reliable signal is has_more, so this package never derives the page
// count from a declared total.
//
// Two strategies are available and return the same AggregateResult shape:
//
//	agg := pagination.NewAggregator(crmClient, pagination.DefaultConfig())
//	res, err := agg.FetchAllSequential(ctx, pagination.PageRequest{Path: "/contacts"})
//	res, err = agg.FetchAllParallel(ctx, pagination.PageRequest{Path: "/contacts"}, 6)
//
// The sequential strategy walks pages 1, 2, 3, ... until has_more is false.
//
// The parallel strategy first locates the last populated page with a bounds
// probe (exponential probe over 1, 10, 100, ... followed by a binary search),
// then fetches the remaining pages with a bounded worker pool:
//   - Probe pages are kept and never fetched again
//   - Workers write into a per-call result map keyed by page number
//   - Items are assembled in ascending page order, whatever the completion order
//   - Any page that still fails after client retries fails the whole call
//     with a PartialFetchError; partial results are never returned
//   - If the probe cannot resolve a boundary the call falls back to the
//     sequential walk, reusing every page already fetched
//
// The backend is assumed to be a frozen snapshot for the duration of one
// aggregation. Concurrent writes to the remote data set can shift items
// across page boundaries; this package does not detect that.
package pagination
