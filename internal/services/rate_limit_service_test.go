package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttempt_AccountRowIsNormalized(t *testing.T) {
	d := newDefense(testSecurityConfig())

	d.limiter.RecordAttempt(context.Background(), "  Alice@Example.COM ", "203.0.113.7", "curl/8.0", false)

	require.Equal(t, 1, d.ledger.len())
	row := d.ledger.last()
	assert.Equal(t, "alice@example.com", row.Identifier)
	assert.Equal(t, models.IdentifierAccount, row.IdentifierKind)
	assert.Equal(t, "203.0.113.7", row.IPAddress)
	assert.Equal(t, d.clock.Now(), row.AttemptTime)
	require.NotNil(t, row.UserAgent)
	assert.Equal(t, "curl/8.0", *row.UserAgent)
	assert.False(t, row.Success)
}

func TestRecordAttempt_EmptyAccountFallsBackToOrigin(t *testing.T) {
	d := newDefense(testSecurityConfig())

	d.limiter.RecordAttempt(context.Background(), "   ", "198.51.100.2", "", false)

	row := d.ledger.last()
	assert.Equal(t, "198.51.100.2", row.Identifier)
	assert.Equal(t, models.IdentifierOrigin, row.IdentifierKind)
	assert.Nil(t, row.UserAgent)
}

func TestRecordAttempt_StorageFailureIsSwallowed(t *testing.T) {
	d := newDefense(testSecurityConfig())
	d.ledger.err = errStorageDown

	assert.NotPanics(t, func() {
		d.limiter.RecordAttempt(context.Background(), "alice", "203.0.113.7", "", false)
	})
	assert.Equal(t, 0, d.ledger.len())
}

func TestCheckOrigin_LimitsAtThreshold(t *testing.T) {
	d := newDefense(testSecurityConfig())
	ctx := context.Background()
	origin := "203.0.113.7"

	for i := 0; i < 9; i++ {
		d.limiter.RecordAttempt(ctx, "user"+string(rune('a'+i)), origin, "", false)
	}
	status := d.limiter.CheckOrigin(ctx, origin)
	assert.False(t, status.Limited)
	assert.Equal(t, 9, status.Attempts)

	d.limiter.RecordAttempt(ctx, "userj", origin, "", false)
	status = d.limiter.CheckOrigin(ctx, origin)
	assert.True(t, status.Limited)
	assert.Equal(t, 10, status.Attempts)
	assert.Equal(t, 10, status.MaxAttempts)
	assert.Equal(t, 15, status.WindowMinutes)
}

func TestCheckOrigin_SuccessesAndOtherOriginsDoNotCount(t *testing.T) {
	d := newDefense(testSecurityConfig())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		d.limiter.RecordAttempt(ctx, "alice", "203.0.113.7", "", true)
		d.limiter.RecordAttempt(ctx, "alice", "198.51.100.2", "", false)
	}

	status := d.limiter.CheckOrigin(ctx, "203.0.113.7")
	assert.False(t, status.Limited)
	assert.Equal(t, 0, status.Attempts)
	assert.True(t, d.limiter.CheckOrigin(ctx, "198.51.100.2").Limited)
}

func TestCheckOrigin_WindowSlides(t *testing.T) {
	d := newDefense(testSecurityConfig())
	ctx := context.Background()
	origin := "203.0.113.7"

	for i := 0; i < 10; i++ {
		d.limiter.RecordAttempt(ctx, "alice", origin, "", false)
	}
	require.True(t, d.limiter.CheckOrigin(ctx, origin).Limited)

	d.clock.Advance(15*time.Minute + time.Second)
	status := d.limiter.CheckOrigin(ctx, origin)
	assert.False(t, status.Limited)
	assert.Equal(t, 0, status.Attempts)
}

func TestCheckOrigin_FailsOpen(t *testing.T) {
	d := newDefense(testSecurityConfig())
	d.ledger.err = errStorageDown

	status := d.limiter.CheckOrigin(context.Background(), "203.0.113.7")
	assert.False(t, status.Limited)
	assert.Equal(t, 0, status.Attempts)
}

func TestAttemptCounts(t *testing.T) {
	d := newDefense(testSecurityConfig())
	ctx := context.Background()

	d.limiter.RecordAttempt(ctx, "alice", "203.0.113.7", "", false)
	d.limiter.RecordAttempt(ctx, "alice", "203.0.113.7", "", false)
	d.limiter.RecordAttempt(ctx, "bob", "203.0.113.7", "", false)

	counts := d.limiter.AttemptCounts(ctx, "ALICE", "203.0.113.7")
	assert.Equal(t, 2, counts.AccountAttempts)
	assert.Equal(t, 3, counts.OriginAttempts)
	assert.Equal(t, 2, counts.AccountRemaining())
	assert.Equal(t, 6, counts.OriginRemaining())
	assert.Equal(t, d.clock.Now().Add(15*time.Minute), counts.ResetAt)

	d.ledger.err = errStorageDown
	counts = d.limiter.AttemptCounts(ctx, "alice", "203.0.113.7")
	assert.Equal(t, 0, counts.AccountAttempts)
	assert.Equal(t, 0, counts.OriginAttempts)
}
