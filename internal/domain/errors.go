package domain

import "errors"

var (
	// ErrProviderUnavailable is returned when a provider is not configured with credentials
	ErrProviderUnavailable = errors.New("provider not configured")

	// ErrProviderError is returned when a provider request fails at the transport level
	ErrProviderError = errors.New("provider request failed")

	// ErrParseFailure is returned when page content matches no extraction strategy
	ErrParseFailure = errors.New("content could not be parsed")

	// ErrTimeout is returned when a scrape task exceeds its time budget
	ErrTimeout = errors.New("task exceeded time budget")

	// ErrNoMatch is returned when extracted offers exist but none meets the score threshold
	ErrNoMatch = errors.New("no offer matched the product")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
