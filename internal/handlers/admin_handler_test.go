package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSecurityReportService struct {
	CurrentStatsFunc func(ctx context.Context) (*models.SecurityStats, error)
	ReportFunc       func(ctx context.Context, hours int) (*models.SecurityReport, error)
}

func (m *MockSecurityReportService) CurrentStats(ctx context.Context) (*models.SecurityStats, error) {
	return m.CurrentStatsFunc(ctx)
}

func (m *MockSecurityReportService) Report(ctx context.Context, hours int) (*models.SecurityReport, error) {
	return m.ReportFunc(ctx, hours)
}

type MockLockoutAdmin struct {
	AdminUnlockFunc func(ctx context.Context, account, actor string) (bool, error)
	AdminLockFunc   func(ctx context.Context, account, actor string, duration time.Duration) (*models.AccountLockout, error)
}

func (m *MockLockoutAdmin) AdminUnlock(ctx context.Context, account, actor string) (bool, error) {
	return m.AdminUnlockFunc(ctx, account, actor)
}

func (m *MockLockoutAdmin) AdminLock(ctx context.Context, account, actor string, duration time.Duration) (*models.AccountLockout, error) {
	return m.AdminLockFunc(ctx, account, actor, duration)
}

func TestGetStats(t *testing.T) {
	h := NewAdminHandler(&MockSecurityReportService{
		CurrentStatsFunc: func(ctx context.Context) (*models.SecurityStats, error) {
			return &models.SecurityStats{
				ActiveLockouts: 2,
				LastHour:       models.AttemptTotals{Total: 12, Successful: 4, Failed: 8},
			}, nil
		},
	}, &MockLockoutAdmin{})

	w := httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest(http.MethodGet, "/admin/security/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats models.SecurityStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.ActiveLockouts)
	assert.Equal(t, int64(8), stats.LastHour.Failed)
}

func TestGetStats_Failure(t *testing.T) {
	h := NewAdminHandler(&MockSecurityReportService{
		CurrentStatsFunc: func(ctx context.Context) (*models.SecurityStats, error) {
			return nil, &models.ReportingError{Op: "count_active_lockouts", Err: errors.New("timeout")}
		},
	}, &MockLockoutAdmin{})

	w := httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest(http.MethodGet, "/admin/security/stats", nil))
	assertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

func TestGetReport(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantHours  int
		wantStatus int
	}{
		{"default period", "", 24, http.StatusOK},
		{"one week", "?hours=168", 168, http.StatusOK},
		{"out of range", "?hours=721", 721, http.StatusBadRequest},
		{"not a number", "?hours=day", 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotHours := 0
			h := NewAdminHandler(&MockSecurityReportService{
				ReportFunc: func(ctx context.Context, hours int) (*models.SecurityReport, error) {
					gotHours = hours
					if hours < 1 || hours > 720 {
						return nil, fmt.Errorf("hours must be between 1 and 720: %w", models.ErrBadRequest)
					}
					return &models.SecurityReport{Period: models.ReportPeriod{Hours: hours}}, nil
				},
			}, &MockLockoutAdmin{})

			w := httptest.NewRecorder()
			h.GetReport(w, httptest.NewRequest(http.MethodGet, "/admin/security/report"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantHours, gotHours)
		})
	}
}

func TestUnlock(t *testing.T) {
	tests := []struct {
		name        string
		existed     bool
		wantMessage string
	}{
		{"locked account", true, "Account unlocked"},
		{"not locked", false, "Account was not locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAccount, gotActor string
			h := NewAdminHandler(&MockSecurityReportService{}, &MockLockoutAdmin{
				AdminUnlockFunc: func(ctx context.Context, account, actor string) (bool, error) {
					gotAccount, gotActor = account, actor
					return tt.existed, nil
				},
			})

			req := newJSONRequest(t, http.MethodPost, "/admin/security/unlock", UnlockRequest{Username: " Alice "})
			req = withClaims(req, "admin-1", "root", models.RoleAdmin)
			w := httptest.NewRecorder()
			h.Unlock(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, " Alice ", gotAccount)
			assert.Equal(t, "root", gotActor)

			var resp UnlockResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "alice", resp.Username)
			assert.Equal(t, tt.existed, resp.Existed)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestUnlock_Errors(t *testing.T) {
	h := NewAdminHandler(&MockSecurityReportService{}, &MockLockoutAdmin{
		AdminUnlockFunc: func(ctx context.Context, account, actor string) (bool, error) {
			if account == "   " {
				return false, fmt.Errorf("account identifier is required: %w", models.ErrBadRequest)
			}
			return false, models.NewStorageError("delete_lockout", errors.New("connection refused"))
		},
	})

	w := httptest.NewRecorder()
	h.Unlock(w, newJSONRequest(t, http.MethodPost, "/admin/security/unlock", map[string]string{}))
	assertErrorResponse(t, w, http.StatusBadRequest, "bad_request")

	w = httptest.NewRecorder()
	h.Unlock(w, newJSONRequest(t, http.MethodPost, "/admin/security/unlock", UnlockRequest{Username: "   "}))
	resp := assertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	assert.Equal(t, "account identifier is required", resp.Message)

	w = httptest.NewRecorder()
	h.Unlock(w, newJSONRequest(t, http.MethodPost, "/admin/security/unlock", UnlockRequest{Username: "alice"}))
	assertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

func TestLock(t *testing.T) {
	lockedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var gotDuration time.Duration
	var gotActor string
	h := NewAdminHandler(&MockSecurityReportService{}, &MockLockoutAdmin{
		AdminLockFunc: func(ctx context.Context, account, actor string, duration time.Duration) (*models.AccountLockout, error) {
			gotDuration, gotActor = duration, actor
			return &models.AccountLockout{
				AccountIdentifier: models.NormalizeIdentifier(account),
				LockedAt:          lockedAt,
				LockedUntil:       lockedAt.Add(duration),
				LockedBy:          models.LockedByAdmin(actor),
			}, nil
		},
	})

	req := newJSONRequest(t, http.MethodPost, "/admin/security/lock", LockRequest{Username: "Mallory", DurationMinutes: 60})
	req = withClaims(req, "admin-1", "root", models.RoleAdmin)
	w := httptest.NewRecorder()
	h.Lock(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Hour, gotDuration)
	assert.Equal(t, "root", gotActor)

	var lockout models.AccountLockout
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lockout))
	assert.Equal(t, "mallory", lockout.AccountIdentifier)
	assert.Equal(t, "admin:root", lockout.LockedBy)
	assert.True(t, lockout.LockedUntil.Equal(lockedAt.Add(time.Hour)))
}

func TestLock_Validation(t *testing.T) {
	h := NewAdminHandler(&MockSecurityReportService{}, &MockLockoutAdmin{
		AdminLockFunc: func(ctx context.Context, account, actor string, duration time.Duration) (*models.AccountLockout, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	})

	w := httptest.NewRecorder()
	h.Lock(w, newJSONRequest(t, http.MethodPost, "/admin/security/lock", LockRequest{Username: "alice", DurationMinutes: -5}))
	resp := assertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	assert.Contains(t, resp.Message, "duration_minutes")
}

func TestActorName_WithoutClaims(t *testing.T) {
	assert.Equal(t, "unknown", actorName(httptest.NewRequest(http.MethodGet, "/", nil)))
}
