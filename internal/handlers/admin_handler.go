package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BradenHooton/stockroom/internal/auth"
	"github.com/BradenHooton/stockroom/internal/models"
	pkghttp "github.com/BradenHooton/stockroom/pkg/http"
)

// SecurityReportService defines the reporting contract used by the admin endpoints
type SecurityReportService interface {
	CurrentStats(ctx context.Context) (*models.SecurityStats, error)
	Report(ctx context.Context, hours int) (*models.SecurityReport, error)
}

// LockoutAdmin defines the administrative lock operations
type LockoutAdmin interface {
	AdminUnlock(ctx context.Context, account, actor string) (bool, error)
	AdminLock(ctx context.Context, account, actor string, duration time.Duration) (*models.AccountLockout, error)
}

// AdminHandler handles the security administration endpoints.
type AdminHandler struct {
	reports  SecurityReportService
	lockouts LockoutAdmin
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reports SecurityReportService, lockouts LockoutAdmin) *AdminHandler {
	return &AdminHandler{reports: reports, lockouts: lockouts}
}

// UnlockRequest names the account to unlock
type UnlockRequest struct {
	Username string `json:"username" validate:"required,max=255"`
}

// LockRequest names the account to lock. DurationMinutes of zero uses the
// configured lockout duration.
type LockRequest struct {
	Username        string `json:"username" validate:"required,max=255"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=43200"`
}

// UnlockResponse reports the outcome of an unlock
type UnlockResponse struct {
	Username string `json:"username"`
	Existed  bool   `json:"existed"`
	Message  string `json:"message"`
}

// GetStats handles GET /admin/security/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.CurrentStats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve security statistics")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// GetReport handles GET /admin/security/report
// Accepts optional query param ?hours=N (1-720, default 24).
func (h *AdminHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	hours, err := intQuery(r, "hours", 24)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	report, err := h.reports.Report(r.Context(), hours)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
			return
		}
		pkghttp.WriteInternalError(w, "Failed to generate security report")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, report)
}

// Unlock handles POST /admin/security/unlock
func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	actor := actorName(r)

	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	existed, err := h.lockouts.AdminUnlock(r.Context(), req.Username, actor)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
			return
		}
		pkghttp.WriteInternalError(w, "Failed to unlock account")
		return
	}

	message := "Account unlocked"
	if !existed {
		message = "Account was not locked"
	}

	pkghttp.WriteJSON(w, http.StatusOK, UnlockResponse{
		Username: models.NormalizeIdentifier(req.Username),
		Existed:  existed,
		Message:  message,
	})
}

// Lock handles POST /admin/security/lock
func (h *AdminHandler) Lock(w http.ResponseWriter, r *http.Request) {
	actor := actorName(r)

	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	lockout, err := h.lockouts.AdminLock(r.Context(), req.Username, actor, time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
			return
		}
		pkghttp.WriteInternalError(w, "Failed to lock account")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, lockout)
}

// actorName identifies the administrator for lock provenance
func actorName(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil && claims.Username != "" {
		return claims.Username
	}
	return "unknown"
}
