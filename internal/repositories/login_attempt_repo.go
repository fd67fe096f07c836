package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/stockroom/internal/database"
	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository is the append-only attempt ledger.
// Every row carries the origin address, so origin-scoped counts read ip_address
// regardless of the row's identifier kind.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// Append records a login attempt
func (r *LoginAttemptRepository) Append(ctx context.Context, attempt *models.LoginAttempt) error {
	if !attempt.IdentifierKind.Valid() {
		return fmt.Errorf("invalid identifier kind %q: %w", attempt.IdentifierKind, models.ErrBadRequest)
	}

	query := `
		INSERT INTO login_attempts (identifier, identifier_kind, ip_address, user_agent, attempt_time, success)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		attempt.Identifier,
		string(attempt.IdentifierKind),
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
		attempt.Success,
	).Scan(&attempt.ID)

	return database.StorageError("login_attempts.append", err)
}

// CountFailedSince counts failed attempts at or after since for one identifier
func (r *LoginAttemptRepository) CountFailedSince(ctx context.Context, identifier string, kind models.IdentifierKind, since time.Time) (int, error) {
	var query string
	switch kind {
	case models.IdentifierAccount:
		query = `
			SELECT COUNT(*) FROM login_attempts
			WHERE identifier_kind = 'account' AND identifier = $1
			  AND success = false AND attempt_time >= $2
		`
	case models.IdentifierOrigin:
		query = `
			SELECT COUNT(*) FROM login_attempts
			WHERE ip_address = $1 AND success = false AND attempt_time >= $2
		`
	default:
		return 0, fmt.Errorf("invalid identifier kind %q: %w", kind, models.ErrBadRequest)
	}

	var count int
	err := r.pool.QueryRow(ctx, query, identifier, since).Scan(&count)
	if err != nil {
		return 0, database.StorageError("login_attempts.count_failed", err)
	}
	return count, nil
}

// PurgeOlderThan deletes attempts strictly older than cutoff
func (r *LoginAttemptRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempt_time < $1`, cutoff)
	if err != nil {
		return 0, database.StorageError("login_attempts.purge", err)
	}
	return result.RowsAffected(), nil
}

// Totals counts attempts at or after since
func (r *LoginAttemptRepository) Totals(ctx context.Context, since time.Time) (models.AttemptTotals, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE NOT success)
		FROM login_attempts
		WHERE attempt_time >= $1
	`

	var totals models.AttemptTotals
	err := r.pool.QueryRow(ctx, query, since).Scan(&totals.Total, &totals.Successful, &totals.Failed)
	if err != nil {
		return models.AttemptTotals{}, database.StorageError("login_attempts.totals", err)
	}
	return totals, nil
}

// Summarize aggregates attempts at or after since. SuccessRate is left to the caller.
func (r *LoginAttemptRepository) Summarize(ctx context.Context, since time.Time) (models.AttemptSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE NOT success),
		       COUNT(DISTINCT ip_address),
		       COUNT(DISTINCT identifier) FILTER (WHERE identifier_kind = 'account')
		FROM login_attempts
		WHERE attempt_time >= $1
	`

	var s models.AttemptSummary
	err := r.pool.QueryRow(ctx, query, since).Scan(
		&s.TotalAttempts,
		&s.SuccessfulLogins,
		&s.FailedAttempts,
		&s.UniqueOrigins,
		&s.UniqueAccounts,
	)
	if err != nil {
		return models.AttemptSummary{}, database.StorageError("login_attempts.summarize", err)
	}
	return s, nil
}

// TopFailedOrigins ranks origins by failed attempts, ties broken by address
func (r *LoginAttemptRepository) TopFailedOrigins(ctx context.Context, since time.Time, limit int) ([]models.OriginCount, error) {
	query := `
		SELECT ip_address, COUNT(*) AS failed_count
		FROM login_attempts
		WHERE attempt_time >= $1 AND success = false
		GROUP BY ip_address
		ORDER BY failed_count DESC, ip_address ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, database.StorageError("login_attempts.top_origins", err)
	}

	origins, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.OriginCount, error) {
		var oc models.OriginCount
		err := row.Scan(&oc.Origin, &oc.FailedCount)
		return oc, err
	})
	if err != nil {
		return nil, database.StorageError("login_attempts.top_origins", err)
	}
	return origins, nil
}

// TopTargetedAccounts ranks account identifiers by failed attempts, ties broken by identifier
func (r *LoginAttemptRepository) TopTargetedAccounts(ctx context.Context, since time.Time, limit int) ([]models.AccountCount, error) {
	query := `
		SELECT identifier, COUNT(*) AS attempt_count
		FROM login_attempts
		WHERE attempt_time >= $1 AND identifier_kind = 'account' AND success = false
		GROUP BY identifier
		ORDER BY attempt_count DESC, identifier ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, database.StorageError("login_attempts.top_accounts", err)
	}

	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AccountCount, error) {
		var ac models.AccountCount
		err := row.Scan(&ac.AccountIdentifier, &ac.AttemptCount)
		return ac, err
	})
	if err != nil {
		return nil, database.StorageError("login_attempts.top_accounts", err)
	}
	return accounts, nil
}
