package models

import "errors"

// Error taxonomy shared across the service. Wrap these with fmt.Errorf and
// %w so callers can match with errors.Is.
var (
	// ErrInvalidQuery rejects an empty or malformed query before any
	// external call is made.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound reports an unknown owner or memory.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateContent signals that the canonical fingerprint already
	// exists for the owner. It is a success path, not a failure: handlers
	// return the existing memory id.
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrGraphConsistency rejects an edge between memories of different
	// owners, or a self-loop.
	ErrGraphConsistency = errors.New("graph consistency violation")
)
