package model

import "errors"

var (
	// ErrGenerationUnavailable means the generative service call failed as a whole.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrLookupFailed is scoped to a single encyclopedia query.
	ErrLookupFailed = errors.New("lookup failed")
	// ErrPersistenceFailure is scoped to a single entity; the local graph stays authoritative.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrStaleResponse marks a result that was superseded by a newer request.
	ErrStaleResponse = errors.New("stale response")
	ErrUnknownPill   = errors.New("unknown pill")
	// ErrInvalidAttribute rejects a blank attribute name or value.
	ErrInvalidAttribute = errors.New("attribute name and value are required")
)
