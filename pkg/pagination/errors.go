package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrBoundsNotFound is returned when the bounds probe cannot resolve the
	// last populated page. Callers should fall back to a sequential walk.
	ErrBoundsNotFound = errors.New("page bounds not found")

	// ErrMaxPagesExceeded is returned when a sequential walk reaches
	// Config.MaxPages without the backend reporting has_more=false.
	ErrMaxPagesExceeded = errors.New("maximum page count exceeded")

	errPageMissing = errors.New("page missing after worker pool finished")
)

// PartialFetchError reports a worker-pool page that failed after the client
// exhausted its retries, or was never fetched. The aggregation it belongs to
// is discarded.
type PartialFetchError struct {
	Page     int
	Fetched  int
	Expected int
	Err      error
}

// Error implements the error interface.
func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("fetch page %d failed (%d/%d pages fetched): %v",
		e.Page, e.Fetched, e.Expected, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PartialFetchError) Unwrap() error {
	return e.Err
}
