package ports

import "errors"

// Standard application-level errors.
// Adapters and the engine wrap underlying failures with these standard errors
// so callers can branch with errors.Is.
var (
	// General Errors
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Engine Errors
	ErrNoData                = errors.New("no data for position")
	ErrInsufficientInventory = errors.New("trying to sell more units than there are bought ones")

	// Import Errors
	ErrMissingFields   = errors.New("missing required fields")
	ErrMalformedRecord = errors.New("malformed import record")
	ErrUnknownCurrency = errors.New("could not convert currency")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")

	// Storage Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrCacheIO      = errors.New("cache read/write failed")
)
