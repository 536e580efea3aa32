package quota

import "errors"

var (
	// ErrStatsNotFound indicates no stats record exists for the owner.
	ErrStatsNotFound = errors.New("storage stats not found")
	// ErrMemoryQuotaExceeded is returned when an upload would exceed the owner's byte allocation.
	ErrMemoryQuotaExceeded = errors.New("storage quota exceeded")
	// ErrAPIQuotaExceeded is returned when the owner has exhausted the API-call allocation.
	ErrAPIQuotaExceeded = errors.New("api call quota exceeded")
)
