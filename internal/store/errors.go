package store

import "errors"

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConcurrentModification aborts a commit whose read set changed.
	// The transaction runner retries it; callers never see it directly.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrContended is surfaced after the retry budget is exhausted.
	// The caller may retry the whole operation with backoff.
	ErrContended = errors.New("store contention: retry budget exhausted")
)
