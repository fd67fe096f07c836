package models

import (
	"math"
	"strings"
	"time"
)

// IdentifierKind distinguishes account-scoped from origin-scoped ledger entries
type IdentifierKind string

const (
	IdentifierAccount IdentifierKind = "account"
	IdentifierOrigin  IdentifierKind = "origin"
)

// Valid reports whether k is a known kind
func (k IdentifierKind) Valid() bool {
	return k == IdentifierAccount || k == IdentifierOrigin
}

// LoginAttempt is one row of the attempt ledger. Rows are never updated.
type LoginAttempt struct {
	ID             int64          `db:"id"`
	Identifier     string         `db:"identifier"`
	IdentifierKind IdentifierKind `db:"identifier_kind"`
	IPAddress      string         `db:"ip_address"`
	UserAgent      *string        `db:"user_agent"`
	AttemptTime    time.Time      `db:"attempt_time"`
	Success        bool           `db:"success"`
}

// NormalizeIdentifier trims and case-folds an account identifier.
// Every ledger write and lockout key goes through it.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// OriginStatus is the result of an origin rate-limit check
type OriginStatus struct {
	Limited       bool `json:"limited"`
	Attempts      int  `json:"attempts"`
	MaxAttempts   int  `json:"max_attempts"`
	WindowMinutes int  `json:"window_minutes"`
}

// AttemptCounts holds failed-attempt counts on both axes for response headers
type AttemptCounts struct {
	AccountAttempts    int
	AccountMaxAttempts int
	OriginAttempts     int
	OriginMaxAttempts  int
	ResetAt            time.Time
}

// AccountRemaining is the number of failures left before the account locks
func (c AttemptCounts) AccountRemaining() int {
	return max(0, c.AccountMaxAttempts-c.AccountAttempts-1)
}

// OriginRemaining is the number of failures left before the origin is throttled
func (c AttemptCounts) OriginRemaining() int {
	return max(0, c.OriginMaxAttempts-c.OriginAttempts-1)
}

// RetryAfterSeconds returns max(0, ceil((lockedUntil - now) / 1s))
func RetryAfterSeconds(lockedUntil, now time.Time) int {
	remaining := lockedUntil.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}
