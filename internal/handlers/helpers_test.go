package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/stockroom/internal/auth"
	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/BradenHooton/stockroom/internal/services"
	pkghttp "github.com/BradenHooton/stockroom/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newJSONRequest creates an HTTP request with a JSON body
func newJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withClaims adds access token claims to the request context
func withClaims(req *http.Request, userID, username, role string) *http.Request {
	claims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		Type:     models.TokenTypeAccess,
	}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

// withURLParams sets chi route parameters
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// assertErrorResponse checks status and the machine-readable error code
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message)
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, username, password, ipAddress, userAgent string) (*services.AuthResponse, models.AttemptCounts, error)
	RefreshTokenFunc   func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	LogoutFunc         func(ctx context.Context, accessToken string) error
	RegisterFunc       func(ctx context.Context, username, password, role, actorID string) (*services.UserResponse, error)
	ProfileFunc        func(ctx context.Context, userID string) (*services.UserResponse, error)
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
}

// defaultCounts are the pre-attempt counts of a fresh account and origin
func defaultCounts() models.AttemptCounts {
	return models.AttemptCounts{
		AccountMaxAttempts: 5,
		OriginMaxAttempts:  10,
		ResetAt:            time.Date(2026, 3, 14, 9, 15, 0, 0, time.UTC),
	}
}

func (m *MockAuthService) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*services.AuthResponse, models.AttemptCounts, error) {
	if m.LoginFunc == nil {
		return nil, defaultCounts(), models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, username, password, ipAddress, userAgent)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accessToken)
}

func (m *MockAuthService) Register(ctx context.Context, username, password, role, actorID string) (*services.UserResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, username, password, role, actorID)
}

func (m *MockAuthService) Profile(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.ProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ProfileFunc(ctx, userID)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
}
