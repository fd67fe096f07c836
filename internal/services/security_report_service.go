package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/BradenHooton/stockroom/internal/config"
	"github.com/BradenHooton/stockroom/internal/models"
	"golang.org/x/sync/errgroup"
)

// MaxReportHours bounds the period a report may cover
const MaxReportHours = 720

// AttemptAggregates are the ledger queries used for reporting
type AttemptAggregates interface {
	Totals(ctx context.Context, since time.Time) (models.AttemptTotals, error)
	Summarize(ctx context.Context, since time.Time) (models.AttemptSummary, error)
	TopFailedOrigins(ctx context.Context, since time.Time, limit int) ([]models.OriginCount, error)
	TopTargetedAccounts(ctx context.Context, since time.Time, limit int) ([]models.AccountCount, error)
}

// LockoutCounter counts locks in force
type LockoutCounter interface {
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// AlertNotifier delivers security alerts raised by the daily digest
type AlertNotifier interface {
	Notify(ctx context.Context, report *models.SecurityReport, alerts []models.SecurityAlert) error
}

// SecurityReportService aggregates ledger and lockout data. It never mutates
// either, and its failures stay off the login path.
type SecurityReportService struct {
	attempts AttemptAggregates
	lockouts LockoutCounter
	notifier AlertNotifier
	config   config.SecurityConfig
	alerts   config.AlertConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewSecurityReportService creates a new SecurityReportService
func NewSecurityReportService(attempts AttemptAggregates, lockouts LockoutCounter, notifier AlertNotifier, cfg config.SecurityConfig, alerts config.AlertConfig, logger *slog.Logger) *SecurityReportService {
	return &SecurityReportService{
		attempts: attempts,
		lockouts: lockouts,
		notifier: notifier,
		config:   cfg,
		alerts:   alerts,
		logger:   logger,
		now:      time.Now,
	}
}

// CurrentStats returns active lockouts and last-hour attempt totals
func (s *SecurityReportService) CurrentStats(ctx context.Context) (*models.SecurityStats, error) {
	return s.currentStats(ctx, s.now())
}

func (s *SecurityReportService) currentStats(ctx context.Context, now time.Time) (*models.SecurityStats, error) {
	var stats models.SecurityStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.lockouts.CountActive(gctx, now)
		if err != nil {
			return &models.ReportingError{Op: "active_lockouts", Err: err}
		}
		stats.ActiveLockouts = n
		return nil
	})
	g.Go(func() error {
		totals, err := s.attempts.Totals(gctx, now.Add(-time.Hour))
		if err != nil {
			return &models.ReportingError{Op: "last_hour", Err: err}
		}
		stats.LastHour = totals
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Report aggregates the trailing hours (1..MaxReportHours). Any failed query
// fails the whole report with a *models.ReportingError.
func (s *SecurityReportService) Report(ctx context.Context, hours int) (*models.SecurityReport, error) {
	if hours < 1 || hours > MaxReportHours {
		return nil, fmt.Errorf("hours must be between 1 and %d: %w", MaxReportHours, models.ErrBadRequest)
	}

	end := s.now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	report := &models.SecurityReport{
		Period: models.ReportPeriod{Hours: hours, StartTime: start, EndTime: end},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.attempts.Summarize(gctx, start)
		if err != nil {
			return &models.ReportingError{Op: "summary", Err: err}
		}
		summary.SuccessRate = successRate(summary.SuccessfulLogins, summary.TotalAttempts)
		report.Summary = summary
		return nil
	})
	g.Go(func() error {
		stats, err := s.currentStats(gctx, end)
		if err != nil {
			return err
		}
		report.Current = *stats
		return nil
	})
	g.Go(func() error {
		origins, err := s.attempts.TopFailedOrigins(gctx, start, s.config.TopN)
		if err != nil {
			return &models.ReportingError{Op: "top_origins", Err: err}
		}
		report.TopThreats.FailedOrigins = origins
		return nil
	})
	g.Go(func() error {
		accounts, err := s.attempts.TopTargetedAccounts(gctx, start, s.config.TopN)
		if err != nil {
			return &models.ReportingError{Op: "top_accounts", Err: err}
		}
		report.TopThreats.TargetedAccounts = accounts
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("security report failed", slog.Int("hours", hours), slog.Any("error", err))
		return nil, err
	}

	if report.TopThreats.FailedOrigins == nil {
		report.TopThreats.FailedOrigins = []models.OriginCount{}
	}
	if report.TopThreats.TargetedAccounts == nil {
		report.TopThreats.TargetedAccounts = []models.AccountCount{}
	}

	return report, nil
}

// DailyDigest builds the 24 hour report, raises threshold alerts and hands
// them to the notifier. It returns the alerts raised.
func (s *SecurityReportService) DailyDigest(ctx context.Context) ([]models.SecurityAlert, error) {
	report, err := s.Report(ctx, 24)
	if err != nil {
		return nil, err
	}

	alerts := s.evaluateAlerts(report)

	s.logger.Info("daily security digest",
		slog.Int64("total_attempts", report.Summary.TotalAttempts),
		slog.Int64("failed_attempts", report.Summary.FailedAttempts),
		slog.Float64("success_rate", report.Summary.SuccessRate),
		slog.Int64("active_lockouts", report.Current.ActiveLockouts),
		slog.Int("alerts", len(alerts)))

	if len(alerts) == 0 {
		return alerts, nil
	}

	for _, alert := range alerts {
		s.logger.Warn("security alert",
			slog.String("kind", alert.Kind),
			slog.Int64("value", alert.Value),
			slog.Int64("threshold", alert.Threshold))
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, report, alerts); err != nil {
			s.logger.Error("failed to deliver security alerts", slog.Any("error", err))
		}
	}

	return alerts, nil
}

func (s *SecurityReportService) evaluateAlerts(report *models.SecurityReport) []models.SecurityAlert {
	alerts := make([]models.SecurityAlert, 0)

	if failed := report.Summary.FailedAttempts; failed > s.alerts.FailedAttemptsThreshold {
		alerts = append(alerts, models.SecurityAlert{
			Kind:      "high_failed_attempts",
			Message:   fmt.Sprintf("%d failed login attempts in the last 24 hours", failed),
			Value:     failed,
			Threshold: s.alerts.FailedAttemptsThreshold,
		})
	}

	if active := report.Current.ActiveLockouts; active > s.alerts.ActiveLockoutsThreshold {
		alerts = append(alerts, models.SecurityAlert{
			Kind:      "many_active_lockouts",
			Message:   fmt.Sprintf("%d accounts are currently locked", active),
			Value:     active,
			Threshold: s.alerts.ActiveLockoutsThreshold,
		})
	}

	return alerts
}

// successRate is a percentage rounded to two decimals, 0 when total is 0
func successRate(successful, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(successful)/float64(total)*10000) / 100
}
