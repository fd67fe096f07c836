package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login defense errors
	ErrAccountLocked     = errors.New("account is temporarily locked")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// StorageError reports a transient failure against the persistent store.
// Callers on the authentication path log it and fall back to their fail-open default.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err; it returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err (or anything it wraps) is a *StorageError
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ConfigurationError is returned at startup for invalid security constants
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// ReportingError reports a failed aggregate query. It is distinct from an empty result.
type ReportingError struct {
	Op  string
	Err error
}

func (e *ReportingError) Error() string {
	return fmt.Sprintf("reporting: %s: %v", e.Op, e.Err)
}

func (e *ReportingError) Unwrap() error {
	return e.Err
}

// AccountLockedError carries the live lock that rejected a login.
type AccountLockedError struct {
	LockedUntil    time.Time
	FailedAttempts int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.LockedUntil.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// OriginLimitedError carries the counts that throttled an origin address.
type OriginLimitedError struct {
	Attempts      int
	MaxAttempts   int
	WindowMinutes int
}

func (e *OriginLimitedError) Error() string {
	return fmt.Sprintf("origin rate limited: %d/%d failed attempts in %d minutes",
		e.Attempts, e.MaxAttempts, e.WindowMinutes)
}

func (e *OriginLimitedError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
