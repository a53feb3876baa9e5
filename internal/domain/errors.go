package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
// Anything wrapping ErrFatal means "the process must exit non-zero";
// only cmd/claimerd translates that into an actual os.Exit so tests
// can observe the outcome without terminating.
var (
	ErrFatal = errors.New("fatal condition")

	ErrAgentUnreachable = fmt.Errorf("agent unreachable after all attempts: %w", ErrFatal)
	ErrReadinessQuery   = fmt.Errorf("readiness query failed: %w", ErrFatal)
	ErrCommandRejected  = fmt.Errorf("agent rejected command: %w", ErrFatal)
	ErrCommandTransport = fmt.Errorf("command transport failed: %w", ErrFatal)

	ErrInvalidInterval = errors.New("claim interval must be a positive duration")
	ErrQueueFull       = errors.New("dispatch queue is at capacity")
	ErrQueueClosed     = errors.New("dispatch queue is not running")
	ErrSinkDisabled    = errors.New("notification sink not configured")
)
