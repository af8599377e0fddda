package models

import "errors"

// Domain errors for the logging core. HTTP mapping happens in one place
// (pkg/api); everything below the API layer matches with errors.Is.
var (
	// Request errors
	ErrBadRequest   = errors.New("bad request")
	ErrSizeExceeded = errors.New("request size exceeds limit")
	ErrRateLimited  = errors.New("rate limit exceeded")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrRelDurability    = errors.New("relational write failed")
	ErrRecordNotFound   = errors.New("record not found")
	ErrStoreUnbound     = errors.New("store not bound")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
)
