package domain

import (
	"errors"
	"fmt"
)

// Common errors shared across the lifecycle components.
var (
	// ErrNotFound is returned when an entity is not found in the database.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleState is returned when an optimistic version check fails because
	// another driver transitioned the same content first. Callers must reload
	// and re-decide, not blindly retry the same write.
	ErrStaleState = errors.New("stale content state")

	// ErrInvalidTransition is returned when a status change is not in the
	// transition table. It indicates caller misuse and is never coerced.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrQuotaExceeded is returned when a client has used up its monthly post
	// allowance. This is a user-visible outcome, not a system fault.
	ErrQuotaExceeded = errors.New("monthly post limit reached")

	// ErrClientInactive is returned when an operation targets a deactivated client.
	ErrClientInactive = errors.New("client is not active")

	// ErrInvalidContent is returned when creating content with invalid fields.
	ErrInvalidContent = errors.New("invalid content")

	// ErrRejectionReasonRequired is returned by Reject when no reason is given.
	ErrRejectionReasonRequired = errors.New("rejection reason is required")

	// ErrRetriesExhausted is returned when rejected content has no retry
	// budget left. The content stays in Rejected for manual handling.
	ErrRetriesExhausted = errors.New("regeneration retries exhausted")
)

// QuotaError carries the usage numbers behind a quota denial so the caller
// can surface them to the client.
type QuotaError struct {
	ClientID string
	Used     int
	Limit    int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("monthly post limit reached (%d/%d)", e.Used, e.Limit)
}

// Unwrap makes errors.Is(err, ErrQuotaExceeded) work.
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// TransitionError describes a rejected status transition.
type TransitionError struct {
	ContentID string
	From      ContentStatus
	To        ContentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("content %s: cannot transition %s -> %s", e.ContentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
