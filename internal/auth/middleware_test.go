package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserRepo struct {
	users map[string]*models.User
	err   error
}

func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return user, nil
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

const testSecret = "test-secret-at-least-sixteen"

func newTestManager(repo *stubUserRepo) *TokenManager {
	tm := NewTokenManager(testSecret, 15*time.Minute, time.Hour)
	tm.SetUserRepo(repo)
	return tm
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r)
		if claims == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_AcceptsAccessToken(t *testing.T) {
	alice := &models.User{ID: "u1", Username: "alice", Role: models.RoleViewer, TokenKey: "k1"}
	tm := newTestManager(&stubUserRepo{users: map[string]*models.User{"u1": alice}})

	token, err := tm.GenerateAccessToken(alice)
	require.NoError(t, err)

	mw := AuthMiddleware(tm, &stubRevocations{}, RevocationConfig{}, slog.Default())
	w := serve(mw(okHandler()), token)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	alice := &models.User{ID: "u1", Username: "alice", Role: models.RoleViewer, TokenKey: "k1"}
	repo := &stubUserRepo{users: map[string]*models.User{"u1": alice}}
	tm := newTestManager(repo)

	access, err := tm.GenerateAccessToken(alice)
	require.NoError(t, err)
	refresh, err := tm.GenerateRefreshToken(alice)
	require.NoError(t, err)
	accessClaims, err := tm.ValidateToken(access)
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		revocations *stubRevocations
		config      RevocationConfig
		wantStatus  int
	}{
		{"missing header", "", &stubRevocations{}, RevocationConfig{}, http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", &stubRevocations{}, RevocationConfig{}, http.StatusUnauthorized},
		{"refresh token", refresh, &stubRevocations{}, RevocationConfig{}, http.StatusUnauthorized},
		{"revoked token", access, &stubRevocations{revoked: map[string]bool{accessClaims.ID: true}}, RevocationConfig{}, http.StatusUnauthorized},
		{"revocation check fails closed", access, &stubRevocations{err: errors.New("db down")}, RevocationConfig{FailClosed: true}, http.StatusServiceUnavailable},
		{"revocation check fails open", access, &stubRevocations{err: errors.New("db down")}, RevocationConfig{}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := AuthMiddleware(tm, tt.revocations, tt.config, slog.Default())
			w := serve(mw(okHandler()), tt.token)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestValidateToken_RotatedKeyInvalidatesToken(t *testing.T) {
	alice := &models.User{ID: "u1", Username: "alice", Role: models.RoleViewer, TokenKey: "k1"}
	repo := &stubUserRepo{users: map[string]*models.User{"u1": alice}}
	tm := newTestManager(repo)

	token, err := tm.GenerateAccessToken(alice)
	require.NoError(t, err)

	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", Role: models.RoleViewer, TokenKey: "k2"}

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	repo := &stubUserRepo{users: map[string]*models.User{
		"admin":  {ID: "admin", Username: "root", Role: models.RoleAdmin},
		"viewer": {ID: "viewer", Username: "bob", Role: models.RoleViewer},
	}}

	tests := []struct {
		name       string
		claims     *models.TokenClaims
		roles      []string
		wantStatus int
	}{
		{"admin allowed", &models.TokenClaims{UserID: "admin"}, []string{models.RoleAdmin}, http.StatusOK},
		{"viewer forbidden", &models.TokenClaims{UserID: "viewer"}, []string{models.RoleAdmin}, http.StatusForbidden},
		{"viewer allowed by any-of", &models.TokenClaims{UserID: "viewer"}, []string{models.RoleAdmin, models.RoleViewer}, http.StatusOK},
		{"unknown user", &models.TokenClaims{UserID: "ghost"}, []string{models.RoleViewer}, http.StatusUnauthorized},
		{"no claims", nil, []string{models.RoleViewer}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/security/stats", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), UserContextKey, tt.claims))
			}
			w := httptest.NewRecorder()

			h := RequireRole(repo, tt.roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", BearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", BearerToken(req))

	req.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(req))
}
