package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/stockroom/internal/database"
	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LockoutRepository stores at most one lockout row per account identifier
type LockoutRepository struct {
	pool *pgxpool.Pool
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{pool: db.Pool}
}

const lockoutColumns = `account_identifier, failed_attempts, locked_at, locked_until, locked_by`

func scanLockout(row pgx.Row) (*models.AccountLockout, error) {
	var l models.AccountLockout
	err := row.Scan(&l.AccountIdentifier, &l.FailedAttempts, &l.LockedAt, &l.LockedUntil, &l.LockedBy)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Get returns the lockout row for an account, live or expired.
// A missing row yields (nil, nil).
func (r *LockoutRepository) Get(ctx context.Context, accountIdentifier string) (*models.AccountLockout, error) {
	query := `SELECT ` + lockoutColumns + ` FROM account_lockouts WHERE account_identifier = $1`

	lockout, err := scanLockout(r.pool.QueryRow(ctx, query, accountIdentifier))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.StorageError("account_lockouts.get", err)
	}
	return lockout, nil
}

// Arm inserts the lock, or replaces an existing row only when that row has
// already expired at lockout.LockedAt. The whole decision is one statement,
// so concurrent arms for the same account converge on a single live window.
// It returns the row as stored and whether this call wrote it.
func (r *LockoutRepository) Arm(ctx context.Context, lockout *models.AccountLockout) (*models.AccountLockout, bool, error) {
	query := `
		INSERT INTO account_lockouts (` + lockoutColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_identifier) DO UPDATE
		SET failed_attempts = EXCLUDED.failed_attempts,
		    locked_at       = EXCLUDED.locked_at,
		    locked_until    = EXCLUDED.locked_until,
		    locked_by       = EXCLUDED.locked_by
		WHERE account_lockouts.locked_until <= EXCLUDED.locked_at
		RETURNING ` + lockoutColumns

	stored, err := scanLockout(r.pool.QueryRow(ctx, query,
		lockout.AccountIdentifier,
		lockout.FailedAttempts,
		lockout.LockedAt,
		lockout.LockedUntil,
		lockout.LockedBy,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, database.StorageError("account_lockouts.arm", err)
	}

	// The conflict guard rejected the write: a live lock already exists
	existing, err := r.Get(ctx, lockout.AccountIdentifier)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Put writes the lock unconditionally (administrative lock)
func (r *LockoutRepository) Put(ctx context.Context, lockout *models.AccountLockout) error {
	query := `
		INSERT INTO account_lockouts (` + lockoutColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_identifier) DO UPDATE
		SET failed_attempts = EXCLUDED.failed_attempts,
		    locked_at       = EXCLUDED.locked_at,
		    locked_until    = EXCLUDED.locked_until,
		    locked_by       = EXCLUDED.locked_by
	`

	_, err := r.pool.Exec(ctx, query,
		lockout.AccountIdentifier,
		lockout.FailedAttempts,
		lockout.LockedAt,
		lockout.LockedUntil,
		lockout.LockedBy,
	)
	return database.StorageError("account_lockouts.put", err)
}

// Delete removes the lockout row; it reports whether a row existed
func (r *LockoutRepository) Delete(ctx context.Context, accountIdentifier string) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM account_lockouts WHERE account_identifier = $1`, accountIdentifier)
	if err != nil {
		return false, database.StorageError("account_lockouts.delete", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteExpired removes rows whose lock ended before now
func (r *LockoutRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM account_lockouts WHERE locked_until < $1`, now)
	if err != nil {
		return 0, database.StorageError("account_lockouts.delete_expired", err)
	}
	return result.RowsAffected(), nil
}

// CountActive counts locks still in force at now
func (r *LockoutRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM account_lockouts WHERE locked_until > $1`, now).Scan(&count)
	if err != nil {
		return 0, database.StorageError("account_lockouts.count_active", err)
	}
	return count, nil
}
