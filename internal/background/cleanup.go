package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/stockroom/internal/config"
	"github.com/BradenHooton/stockroom/internal/models"
)

// runTimeout bounds a single maintenance or report run
const runTimeout = 30 * time.Second

// AttemptPurger removes ledger rows past retention
type AttemptPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockoutPurger removes lockout rows whose lock has lapsed
type LockoutPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenPurger removes revoked tokens that have expired anyway
type TokenPurger interface {
	CleanupExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// DigestRunner produces the periodic security digest
type DigestRunner interface {
	DailyDigest(ctx context.Context) ([]models.SecurityAlert, error)
}

// CleanupManager runs ledger, lockout and token maintenance on a fixed
// schedule, plus the periodic security digest. Failed runs are logged and the
// next tick proceeds as usual.
type CleanupManager struct {
	attempts AttemptPurger
	lockouts LockoutPurger
	tokens   TokenPurger
	digest   DigestRunner
	config   config.SecurityConfig
	logger   *slog.Logger
	now      func() time.Time

	stopCh   chan struct{}
	doneCh   chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager. digest may be nil.
func NewCleanupManager(
	attempts AttemptPurger,
	lockouts LockoutPurger,
	tokens TokenPurger,
	digest DigestRunner,
	cfg config.SecurityConfig,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		attempts: attempts,
		lockouts: lockouts,
		tokens:   tokens,
		digest:   digest,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the schedule in its own goroutine and returns immediately.
// Calling it more than once has no effect.
func (cm *CleanupManager) Start(ctx context.Context) {
	cm.startMu.Lock()
	defer cm.startMu.Unlock()
	if cm.started {
		return
	}
	cm.started = true

	go cm.loop(ctx)
}

func (cm *CleanupManager) loop(ctx context.Context) {
	defer close(cm.doneCh)

	initial := time.NewTimer(cm.config.MaintenanceInitialDelay)
	defer initial.Stop()

	// maintenance ticker is created once the initial delay has passed
	var maintenance <-chan time.Time
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	report := time.NewTicker(cm.config.ReportInterval)
	defer report.Stop()

	cm.logger.Info("cleanup manager started",
		slog.Duration("initial_delay", cm.config.MaintenanceInitialDelay),
		slog.Duration("interval", cm.config.MaintenanceInterval),
		slog.Duration("report_interval", cm.config.ReportInterval))

	for {
		select {
		case <-initial.C:
			cm.RunOnce(ctx)
			ticker = time.NewTicker(cm.config.MaintenanceInterval)
			maintenance = ticker.C
		case <-maintenance:
			cm.RunOnce(ctx)
		case <-report.C:
			cm.runDigest(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs one maintenance pass. Each step runs even if an earlier one failed.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	now := cm.now()
	cutoff := now.Add(-cm.config.Retention)

	purged, err := cm.attempts.PurgeOlderThan(runCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to purge login attempts", slog.Time("cutoff", cutoff), slog.Any("error", err))
	} else if purged > 0 {
		cm.logger.Info("login attempts purged", slog.Int64("rows_deleted", purged))
	}

	expired, err := cm.lockouts.DeleteExpired(runCtx, now)
	if err != nil {
		cm.logger.Error("failed to delete expired lockouts", slog.Any("error", err))
	} else if expired > 0 {
		cm.logger.Info("expired lockouts deleted", slog.Int64("rows_deleted", expired))
	}

	tokens, err := cm.tokens.CleanupExpiredTokens(runCtx, now)
	if err != nil {
		cm.logger.Error("failed to cleanup expired tokens", slog.Any("error", err))
	} else if tokens > 0 {
		cm.logger.Info("expired token cleanup completed", slog.Int64("rows_deleted", tokens))
	}
}

func (cm *CleanupManager) runDigest(ctx context.Context) {
	if cm.digest == nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	if _, err := cm.digest.DailyDigest(runCtx); err != nil {
		cm.logger.Error("security digest failed", slog.Any("error", err))
	}
}

// Stop halts the schedule and waits for an in-flight run to finish.
// It is safe to call more than once, and before Start.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.stopCh)
	})

	cm.startMu.Lock()
	started := cm.started
	cm.startMu.Unlock()
	if started {
		<-cm.doneCh
	}
}
