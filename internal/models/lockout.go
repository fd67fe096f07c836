package models

import (
	"strings"
	"time"
)

// LockedByAutomatic marks locks armed by the failed-attempt threshold
const LockedByAutomatic = "automatic"

// LockedByAdmin returns the provenance value for a lock placed by an administrator
func LockedByAdmin(actor string) string {
	if actor = strings.TrimSpace(actor); actor == "" {
		actor = "unknown"
	}
	return "admin:" + actor
}

// AccountLockout is the single lockout row kept per account identifier.
// A row may outlive its lock; whether it is live is derived from LockedUntil.
type AccountLockout struct {
	AccountIdentifier string    `db:"account_identifier" json:"account_identifier"`
	FailedAttempts    int       `db:"failed_attempts" json:"failed_attempts"`
	LockedAt          time.Time `db:"locked_at" json:"locked_at"`
	LockedUntil       time.Time `db:"locked_until" json:"locked_until"`
	LockedBy          string    `db:"locked_by" json:"locked_by"`
}

// IsActive reports whether the lock is still in force at now
func (l *AccountLockout) IsActive(now time.Time) bool {
	return l != nil && l.LockedUntil.After(now)
}

// LockStatus is the read-only view of an account's lock state
type LockStatus struct {
	Locked         bool       `json:"locked"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	FailedAttempts int        `json:"failed_attempts,omitempty"`
}
