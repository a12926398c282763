package swap

import "errors"

// Error kinds surfaced by the engine. Every failure aborts the whole
// operation; callers observe the stores exactly as they were beforehand.
var (
	// ErrNotFound signals an absent order or offer, including an offer
	// looked up under an order it does not belong to.
	ErrNotFound = errors.New("swap engine: not found")
	// ErrNotActive signals a mutating operation against a terminal order.
	ErrNotActive = errors.New("swap engine: order not active")
	// ErrUnauthorized signals a caller that is not the order owner where
	// ownership is required.
	ErrUnauthorized = errors.New("swap engine: caller not authorized")
	// ErrInvalidInput signals a malformed request, such as an empty bundle
	// or mismatched bundle array lengths.
	ErrInvalidInput = errors.New("swap engine: invalid input")
	// ErrNotApproved signals a bundled asset lacking both blanket and
	// per-token transfer authorization for the engine.
	ErrNotApproved = errors.New("swap engine: missing transfer approval")
	// ErrOwnershipMismatch signals that re-validation at acceptance found a
	// bundled asset no longer owned by the proposer.
	ErrOwnershipMismatch = errors.New("swap engine: asset ownership changed")
	// ErrCustodyViolation signals the listed asset unexpectedly absent from
	// engine custody.
	ErrCustodyViolation = errors.New("swap engine: listed asset not in custody")
	// ErrReentrantCall signals a mutating call entered while another was in
	// flight.
	ErrReentrantCall = errors.New("swap engine: reentrant call")
)
