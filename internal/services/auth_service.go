package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/stockroom/internal/auth"
	"github.com/BradenHooton/stockroom/internal/models"
	pkgauth "github.com/BradenHooton/stockroom/pkg/auth"
	pkglogger "github.com/BradenHooton/stockroom/pkg/logger"
)

// TokenRevocationRepository defines the interface for token revocation operations
type TokenRevocationRepository interface {
	RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time, reason string) error
}

// OriginLimiter is the ledger-backed origin check used by Login
type OriginLimiter interface {
	CheckOrigin(ctx context.Context, origin string) models.OriginStatus
	RecordAttempt(ctx context.Context, account, origin, userAgent string, success bool)
	AttemptCounts(ctx context.Context, account, origin string) models.AttemptCounts
}

// AccountLocker is the lockout state machine used by Login
type AccountLocker interface {
	IsLocked(ctx context.Context, account string) models.LockStatus
	OnFailedAttempt(ctx context.Context, account string) bool
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	revokeRepo  TokenRevocationRepository
	tm          *auth.TokenManager
	limiter     OriginLimiter
	locker      AccountLocker
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, tm *auth.TokenManager, revokeRepo TokenRevocationRepository, limiter OriginLimiter, locker AccountLocker, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		revokeRepo:  revokeRepo,
		tm:          tm,
		limiter:     limiter,
		locker:      locker,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"`
	User         *UserResponse `json:"user"`
}

// Login runs the defended login flow:
// lock check, origin check, credential check, ledger append, lock arming.
// Locked accounts yield *models.AccountLockedError and throttled origins
// *models.OriginLimitedError; both attempts are still recorded as failures.
// A successful login never clears a lock.
// The returned counts predate this attempt and are only taken once the
// outcome can still be a success or ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*AuthResponse, models.AttemptCounts, error) {
	username = models.NormalizeIdentifier(username)

	event := pkglogger.AuditEvent{
		EventType: "login_failed",
		Account:   username,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}

	if status := s.locker.IsLocked(ctx, username); status.Locked {
		s.limiter.RecordAttempt(ctx, username, ipAddress, userAgent, false)
		event.FailureReason = "account_locked"
		s.auditLogger.LogAuthAttempt(event)
		return nil, models.AttemptCounts{}, &models.AccountLockedError{LockedUntil: *status.LockedUntil, FailedAttempts: status.FailedAttempts}
	}

	if origin := s.limiter.CheckOrigin(ctx, ipAddress); origin.Limited {
		s.limiter.RecordAttempt(ctx, username, ipAddress, userAgent, false)
		event.FailureReason = "origin_rate_limited"
		s.auditLogger.LogAuthAttempt(event)
		return nil, models.AttemptCounts{}, &models.OriginLimitedError{
			Attempts:      origin.Attempts,
			MaxAttempts:   origin.MaxAttempts,
			WindowMinutes: origin.WindowMinutes,
		}
	}

	counts := s.limiter.AttemptCounts(ctx, username, ipAddress)

	// a blank account still counts against the origin
	if username == "" {
		s.limiter.RecordAttempt(ctx, "", ipAddress, userAgent, false)
		event.FailureReason = "missing_username"
		s.auditLogger.LogAuthAttempt(event)
		return nil, counts, models.ErrUnauthorized
	}

	// a failed lookup is neither recorded nor counted toward the lockout
	user, err := s.verifyCredentials(ctx, username, password)
	if err != nil && !errors.Is(err, models.ErrUnauthorized) {
		return nil, models.AttemptCounts{}, err
	}
	success := err == nil

	s.limiter.RecordAttempt(ctx, username, ipAddress, userAgent, success)

	if !success {
		s.locker.OnFailedAttempt(ctx, username)

		if status := s.locker.IsLocked(ctx, username); status.Locked {
			event.FailureReason = "account_locked"
			s.auditLogger.LogAuthAttempt(event)
			return nil, models.AttemptCounts{}, &models.AccountLockedError{LockedUntil: *status.LockedUntil, FailedAttempts: status.FailedAttempts}
		}

		event.FailureReason = "invalid_credentials"
		s.auditLogger.LogAuthAttempt(event)
		return nil, counts, models.ErrUnauthorized
	}

	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, models.AttemptCounts{}, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Account:   username,
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return resp, counts, nil
}

// verifyCredentials returns ErrUnauthorized for unknown users and wrong passwords alike.
// Unknown users still pay for one bcrypt comparison.
func (s *AuthService) verifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.CompareDummy(password)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}

func (s *AuthService) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tm.AccessTokenExpiry().Seconds()),
		User:         userModelToResponse(user),
	}, nil
}

// RefreshToken exchanges a refresh token for a new pair and revokes the old one
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != models.TokenTypeRefresh {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.PasswordChangedAt != nil && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(user.PasswordChangedAt.Truncate(time.Second)) {
		s.logger.Info("token refresh blocked: issued before password change", slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, user.ID, claims.ExpiresAt.Time, "refresh_rotation"); err != nil {
		s.logger.Error("failed to revoke rotated refresh token", slog.String("jti", claims.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))
	return s.issueTokens(user)
}

// Register creates a user. Only administrators reach this through the router.
func (s *AuthService) Register(ctx context.Context, username, password, role, actorID string) (*UserResponse, error) {
	username = models.NormalizeIdentifier(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", models.ErrBadRequest)
	}
	if role == "" {
		role = models.RoleViewer
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("role must be admin or viewer: %w", models.ErrBadRequest)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), models.ErrBadRequest)
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	created, err := s.repo.Create(ctx, &models.User{
		Username:          username,
		PasswordHash:      hashedPassword,
		Role:              role,
		PasswordChangedAt: &now,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID), slog.String("role", created.Role))
	s.auditLogger.LogAccountAction("user_registered", created.Username, actorID, map[string]string{"role": created.Role})

	return userModelToResponse(created), nil
}

// Logout revokes the presented access token
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time, "logout"); err != nil {
		s.logger.Error("failed to revoke token", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

// Profile returns the authenticated user's own record
func (s *AuthService) Profile(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInternalServer
	}
	return userModelToResponse(user), nil
}

// ChangePassword verifies the current password, stores the new one and rotates
// the user's token key, which signs out every session.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(user.ID, false)
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		s.auditLogger.LogPasswordChange(user.ID, false)
		return fmt.Errorf("%s: %w", err.Error(), models.ErrBadRequest)
	}
	if currentPassword == newPassword {
		return fmt.Errorf("new password must differ from the current one: %w", models.ErrBadRequest)
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange(user.ID, true)
	return nil
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}
