package model

import "errors"

// Error taxonomy. Every failure surfaced by the core wraps exactly one of
// these sentinels so callers can classify with errors.Is.
var (
	// ErrValidation covers bad parameters, unsupported or unapproved
	// venues/domains, out-of-bounds amounts, excessive slippage, and
	// passed deadlines. Rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrLimitExceeded covers daily caps, active cooldowns, and capacity
	// caps. Recoverable by waiting or resubmitting a smaller amount;
	// amounts are never silently truncated to fit.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrExecution covers inner move failures. Bookkeeping already
	// committed is retained, but no funds move.
	ErrExecution = errors.New("execution failed")

	// ErrStaleData marks unavailable or stale market data. Treated as
	// "opportunity unavailable", not a hard failure.
	ErrStaleData = errors.New("stale or missing data")

	// ErrIdempotency marks a duplicate completion attempt. Rejected with
	// no state change and no duplicate fund release.
	ErrIdempotency = errors.New("duplicate completion")

	// ErrPaused short-circuits every mutating entry point while the
	// admin pause capability is engaged.
	ErrPaused = errors.New("system paused")

	// ErrInFlight rejects re-entry into a state-machine instance while a
	// transition is already in progress.
	ErrInFlight = errors.New("operation in flight")

	// ErrNotFound marks lookups of unregistered domains, unknown
	// transfers, or missing strategies.
	ErrNotFound = errors.New("not found")
)
