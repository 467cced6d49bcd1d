package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a conditional write lost to a concurrent writer
// - ErrAlreadyUsed: write-once field already set (conversion payload)
// - ErrExpired: entity past its expiry
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrLimitExceeded: bounded counter would exceed its cap (code max uses)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyUsed   = errors.New("already used")
	ErrExpired       = errors.New("expired")
	ErrInvalidState  = errors.New("invalid state")
	ErrLimitExceeded = errors.New("limit exceeded")
)
