package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/stockroom/internal/config"
	"github.com/BradenHooton/stockroom/internal/models"
)

// AttemptLedger is the subset of the attempt ledger the login path needs
type AttemptLedger interface {
	Append(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedSince(ctx context.Context, identifier string, kind models.IdentifierKind, since time.Time) (int, error)
}

// RateLimitService records attempts and evaluates the origin sliding window
type RateLimitService struct {
	ledger AttemptLedger
	config config.SecurityConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(ledger AttemptLedger, cfg config.SecurityConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		ledger: ledger,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// RecordAttempt appends one ledger row for the attempt. An empty account
// identifier is recorded against the origin instead. Storage failures are
// logged and swallowed.
func (s *RateLimitService) RecordAttempt(ctx context.Context, account, origin, userAgent string, success bool) {
	attempt := &models.LoginAttempt{
		Identifier:     models.NormalizeIdentifier(account),
		IdentifierKind: models.IdentifierAccount,
		IPAddress:      origin,
		AttemptTime:    s.now(),
		Success:        success,
	}
	if attempt.Identifier == "" {
		attempt.Identifier = origin
		attempt.IdentifierKind = models.IdentifierOrigin
	}
	if userAgent != "" {
		attempt.UserAgent = &userAgent
	}

	failOpen(ctx, s.logger, s.config.StorageTimeout, "record_attempt", struct{}{},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.ledger.Append(ctx, attempt)
		})
}

// CheckOrigin reports whether origin has reached its failed-attempt quota in
// the trailing window. It writes nothing and fails open.
func (s *RateLimitService) CheckOrigin(ctx context.Context, origin string) models.OriginStatus {
	since := s.now().Add(-s.config.Window)

	attempts := failOpen(ctx, s.logger, s.config.StorageTimeout, "check_origin", 0,
		func(ctx context.Context) (int, error) {
			return s.ledger.CountFailedSince(ctx, origin, models.IdentifierOrigin, since)
		})

	status := models.OriginStatus{
		Limited:       attempts >= s.config.MaxAttemptsPerOrigin,
		Attempts:      attempts,
		MaxAttempts:   s.config.MaxAttemptsPerOrigin,
		WindowMinutes: s.config.WindowMinutes(),
	}

	if status.Limited {
		s.logger.Warn("origin rate limited",
			slog.String("ip_address", origin),
			slog.Int("failed_attempts", attempts),
			slog.Int("max_attempts", status.MaxAttempts))
	}

	return status
}

// AttemptCounts returns failed-attempt counts on both axes for response headers.
// Counts fall back to zero on storage failure.
func (s *RateLimitService) AttemptCounts(ctx context.Context, account, origin string) models.AttemptCounts {
	now := s.now()
	since := now.Add(-s.config.Window)
	account = models.NormalizeIdentifier(account)

	counts := models.AttemptCounts{
		AccountMaxAttempts: s.config.MaxAttemptsPerAccount,
		OriginMaxAttempts:  s.config.MaxAttemptsPerOrigin,
		ResetAt:            now.Add(s.config.Window),
	}

	if account != "" {
		counts.AccountAttempts = failOpen(ctx, s.logger, s.config.StorageTimeout, "count_account", 0,
			func(ctx context.Context) (int, error) {
				return s.ledger.CountFailedSince(ctx, account, models.IdentifierAccount, since)
			})
	}
	counts.OriginAttempts = failOpen(ctx, s.logger, s.config.StorageTimeout, "count_origin", 0,
		func(ctx context.Context) (int, error) {
			return s.ledger.CountFailedSince(ctx, origin, models.IdentifierOrigin, since)
		})

	return counts
}
