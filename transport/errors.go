package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotStarted     = errors.New("transport: not started")
	ErrAlreadyStarted = errors.New("transport: already started")
	ErrHandlerNotSet  = errors.New("transport: message handler not set")
)

// DuplicateIDError reports reuse of a correlation id while its predecessor
// is still outstanding. Programming error on the caller's side, never
// retried.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("transport: correlation id %s already outstanding", e.ID)
}

// TimeoutError rejects a pending call that saw no matching response within
// its window.
type TimeoutError struct {
	ID      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport: no response for request %s within %s", e.ID, e.Timeout)
}

// ClosedError rejects a pending call drained at transport shutdown.
type ClosedError struct {
	Reason string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("transport: closed: %s", e.Reason)
}
