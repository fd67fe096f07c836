package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"  Alice ", "alice"},
		{"ALICE@Example.COM", "alice@example.com"},
		{"\t\n", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeIdentifier(tt.in), "input %q", tt.in)
	}
}

func TestIdentifierKind_Valid(t *testing.T) {
	assert.True(t, IdentifierAccount.Valid())
	assert.True(t, IdentifierOrigin.Valid())
	assert.False(t, IdentifierKind("device").Valid())
	assert.False(t, IdentifierKind("").Valid())
}

func TestAttemptCounts_Remaining(t *testing.T) {
	tests := []struct {
		name        string
		counts      AttemptCounts
		wantAccount int
		wantOrigin  int
	}{
		{"fresh", AttemptCounts{AccountMaxAttempts: 5, OriginMaxAttempts: 10}, 4, 9},
		{"one before lock", AttemptCounts{AccountAttempts: 4, AccountMaxAttempts: 5, OriginAttempts: 9, OriginMaxAttempts: 10}, 0, 0},
		{"past threshold", AttemptCounts{AccountAttempts: 12, AccountMaxAttempts: 5, OriginAttempts: 30, OriginMaxAttempts: 10}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAccount, tt.counts.AccountRemaining())
			assert.Equal(t, tt.wantOrigin, tt.counts.OriginRemaining())
		})
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 900, RetryAfterSeconds(now.Add(15*time.Minute), now))
	assert.Equal(t, 1, RetryAfterSeconds(now.Add(time.Millisecond), now), "partial seconds round up")
	assert.Equal(t, 0, RetryAfterSeconds(now, now))
	assert.Equal(t, 0, RetryAfterSeconds(now.Add(-time.Minute), now))
}

func TestLockout_IsActive(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	var missing *AccountLockout
	assert.False(t, missing.IsActive(now))

	lock := &AccountLockout{LockedAt: now, LockedUntil: now.Add(15 * time.Minute)}
	assert.True(t, lock.IsActive(now.Add(14*time.Minute)))
	assert.False(t, lock.IsActive(now.Add(15*time.Minute)), "a lock ends exactly at locked_until")
}

func TestLockedByAdmin(t *testing.T) {
	assert.Equal(t, "admin:root", LockedByAdmin("root"))
	assert.Equal(t, "admin:unknown", LockedByAdmin("  "))
}

func TestTypedErrors(t *testing.T) {
	locked := fmt.Errorf("login: %w", &AccountLockedError{LockedUntil: time.Now().Add(time.Minute), FailedAttempts: 5})
	assert.ErrorIs(t, locked, ErrAccountLocked)
	assert.NotErrorIs(t, locked, ErrRateLimitExceeded)

	limited := &OriginLimitedError{Attempts: 10, MaxAttempts: 10, WindowMinutes: 15}
	assert.ErrorIs(t, limited, ErrRateLimitExceeded)
	assert.Equal(t, "origin rate limited: 10/10 failed attempts in 15 minutes", limited.Error())

	cause := errors.New("connection reset")
	storage := NewStorageError("account_lockouts.get", cause)
	assert.True(t, IsStorageError(fmt.Errorf("wrapped: %w", storage)))
	assert.ErrorIs(t, storage, cause)
	assert.Nil(t, NewStorageError("noop", nil))
	assert.False(t, IsStorageError(cause))

	reporting := &ReportingError{Op: "summarize", Err: cause}
	assert.ErrorIs(t, reporting, cause)
}
