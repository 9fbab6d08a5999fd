package mirror

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConflict is returned when a mapping for a source id already exists.
	ErrConflict = errors.New("source message already mapped")
	// ErrNotFound is returned when an operation needs a mapping that does not exist.
	ErrNotFound = errors.New("source message not mapped")
	// ErrUnknownOrigin is returned when an outbound message has no identity to send it.
	ErrUnknownOrigin = errors.New("unknown message origin")
	// ErrAlreadyRunning is returned when a monitor is started twice.
	ErrAlreadyRunning = errors.New("monitor already running")
)

// StoreError wraps a durable store failure. Transitions that hit a StoreError
// are not committed and the checkpoint does not advance.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStoreError wraps err in a StoreError unless it is nil or one of the
// sentinel errors that callers handle directly.
func WrapStoreError(op string, err error) error {
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// TransportError is a failed destination send or source fetch.
type TransportError struct {
	Op string
	// RetryAfter is the platform's flood-wait hint, if any.
	RetryAfter time.Duration
	// Permanent errors are never retried.
	Permanent bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s failed (retry after %s): %v", e.Op, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConfigurationError lists everything wrong with the startup configuration.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrUnknownOrigin) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Permanent
	}
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsStoreError reports whether err is or wraps a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
