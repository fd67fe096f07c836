package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/stockroom/internal/config"
	"github.com/BradenHooton/stockroom/internal/models"
	pkglogger "github.com/BradenHooton/stockroom/pkg/logger"
)

// LockoutStore persists at most one lockout row per account identifier
type LockoutStore interface {
	Get(ctx context.Context, accountIdentifier string) (*models.AccountLockout, error)
	Arm(ctx context.Context, lockout *models.AccountLockout) (*models.AccountLockout, bool, error)
	Put(ctx context.Context, lockout *models.AccountLockout) error
	Delete(ctx context.Context, accountIdentifier string) (bool, error)
}

// LockoutService is the per-account lock state machine. An account is LOCKED
// while its row's locked_until is in the future and OPEN otherwise; expiry
// needs no write.
type LockoutService struct {
	ledger      AttemptLedger
	store       LockoutStore
	config      config.SecurityConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(ledger AttemptLedger, store LockoutStore, cfg config.SecurityConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *LockoutService {
	return &LockoutService{
		ledger:      ledger,
		store:       store,
		config:      cfg,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// IsLocked reports the account's lock state. Storage failures read as OPEN.
func (s *LockoutService) IsLocked(ctx context.Context, account string) models.LockStatus {
	account = models.NormalizeIdentifier(account)
	if account == "" {
		return models.LockStatus{}
	}

	lockout := failOpen(ctx, s.logger, s.config.StorageTimeout, "is_locked", (*models.AccountLockout)(nil),
		func(ctx context.Context) (*models.AccountLockout, error) {
			return s.store.Get(ctx, account)
		})

	if !lockout.IsActive(s.now()) {
		return models.LockStatus{}
	}

	lockedUntil := lockout.LockedUntil
	return models.LockStatus{
		Locked:         true,
		LockedUntil:    &lockedUntil,
		FailedAttempts: lockout.FailedAttempts,
	}
}

// OnFailedAttempt must run after the failed attempt has been appended, so the
// triggering attempt counts toward the threshold. It arms a lock when the
// account's failures in the window reach the limit and reports whether this
// call armed one. A live lock is left untouched.
func (s *LockoutService) OnFailedAttempt(ctx context.Context, account string) bool {
	account = models.NormalizeIdentifier(account)
	if account == "" {
		return false
	}

	now := s.now()
	since := now.Add(-s.config.Window)

	count := failOpen(ctx, s.logger, s.config.StorageTimeout, "count_account_failures", 0,
		func(ctx context.Context) (int, error) {
			return s.ledger.CountFailedSince(ctx, account, models.IdentifierAccount, since)
		})
	if count < s.config.MaxAttemptsPerAccount {
		return false
	}

	lockout := &models.AccountLockout{
		AccountIdentifier: account,
		FailedAttempts:    count,
		LockedAt:          now,
		LockedUntil:       now.Add(s.config.LockoutDuration),
		LockedBy:          models.LockedByAutomatic,
	}

	armed := failOpen(ctx, s.logger, s.config.StorageTimeout, "arm_lockout", false,
		func(ctx context.Context) (bool, error) {
			_, wrote, err := s.store.Arm(ctx, lockout)
			return wrote, err
		})
	if !armed {
		return false
	}

	s.logger.Warn("account locked",
		slog.String("account", pkglogger.SanitizeIdentifier(account)),
		slog.Int("failed_attempts", count),
		slog.Time("locked_until", lockout.LockedUntil))
	s.auditLogger.LogAccountAction("account_locked", account, models.LockedByAutomatic, map[string]string{
		"failed_attempts": strconv.Itoa(count),
		"locked_until":    lockout.LockedUntil.UTC().Format(time.RFC3339),
	})

	return true
}

// AdminUnlock deletes the account's lockout row whether or not it is live.
// It reports whether a row existed.
func (s *LockoutService) AdminUnlock(ctx context.Context, account, actor string) (bool, error) {
	account = models.NormalizeIdentifier(account)
	if account == "" {
		return false, fmt.Errorf("account identifier is required: %w", models.ErrBadRequest)
	}

	existed, err := s.store.Delete(ctx, account)
	if err != nil {
		s.logger.Error("failed to unlock account",
			slog.String("account", pkglogger.SanitizeIdentifier(account)),
			slog.Any("error", err))
		return false, err
	}

	s.auditLogger.LogAccountAction("account_unlocked", account, models.LockedByAdmin(actor), map[string]string{
		"existed": strconv.FormatBool(existed),
	})

	return existed, nil
}

// AdminLock locks the account for duration regardless of any existing lock
func (s *LockoutService) AdminLock(ctx context.Context, account, actor string, duration time.Duration) (*models.AccountLockout, error) {
	account = models.NormalizeIdentifier(account)
	if account == "" {
		return nil, fmt.Errorf("account identifier is required: %w", models.ErrBadRequest)
	}
	if duration <= 0 {
		duration = s.config.LockoutDuration
	}

	now := s.now()
	lockout := &models.AccountLockout{
		AccountIdentifier: account,
		LockedAt:          now,
		LockedUntil:       now.Add(duration),
		LockedBy:          models.LockedByAdmin(actor),
	}

	if err := s.store.Put(ctx, lockout); err != nil {
		s.logger.Error("failed to lock account",
			slog.String("account", pkglogger.SanitizeIdentifier(account)),
			slog.Any("error", err))
		return nil, err
	}

	s.auditLogger.LogAccountAction("account_locked", account, lockout.LockedBy, map[string]string{
		"locked_until": lockout.LockedUntil.UTC().Format(time.RFC3339),
	})

	return lockout, nil
}
