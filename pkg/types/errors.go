package types

import "errors"

// Sentinel errors for the detection and protection paths. Callers branch on
// these with errors.Is; ErrThreatDetected in particular is an expected
// business outcome under the revert strategy, not an infrastructure failure.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNotConfigured    = errors.New("protection not configured")
	ErrNotWhitelisted   = errors.New("token not whitelisted")
	ErrExpired          = errors.New("swap deadline expired")
	ErrThreatDetected   = errors.New("threat detected")
	ErrStaleOracleData  = errors.New("stale oracle data")
	ErrSlippageExceeded = errors.New("slippage exceeded")
)
