package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/stockroom/internal/auth"
	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/BradenHooton/stockroom/internal/services"
	pkghttp "github.com/BradenHooton/stockroom/pkg/http"
	"github.com/go-chi/chi/v5"
)

const (
	defaultUserPageSize = 50
	maxUserPageSize     = 200
)

// UserService defines the interface for user administration
type UserService interface {
	GetUser(ctx context.Context, id string) (*services.UserResponse, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*services.UserResponse, error)
	DeleteUser(ctx context.Context, id, actorID string) error
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

// ListUsersResponse represents a page of users
type ListUsersResponse struct {
	Users  []*services.UserResponse `json:"users"`
	Count  int                      `json:"count"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

// ListUsers retrieves a page of users
//
// @Summary List users
// @Param limit query int false "Limit (default 50, max 200)"
// @Param offset query int false "Offset (default 0)"
// @Produce json
// @Success 200 {object} ListUsersResponse
// @Router /auth/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultUserPageSize)
	if err != nil || limit < 1 || limit > maxUserPageSize {
		pkghttp.WriteBadRequest(w, "limit must be between 1 and 200")
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil || offset < 0 {
		pkghttp.WriteBadRequest(w, "offset must be a non-negative integer")
		return
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve users")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListUsersResponse{
		Users:  users,
		Count:  len(users),
		Limit:  limit,
		Offset: offset,
	})
}

// GetUser retrieves a user by ID
//
// @Summary Get user by ID
// @Param id path string true "User ID"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /auth/users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user
//
// @Summary Delete user
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /auth/users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, badRequestMessage(err))
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
