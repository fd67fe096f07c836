package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsers(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var gotLimit, gotOffset int
	repo := &MockUserRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			gotLimit, gotOffset = limit, offset
			return []*models.User{
				{ID: "u1", Username: "alice", Role: models.RoleAdmin, CreatedAt: created, UpdatedAt: created},
				{ID: "u2", Username: "bob", Role: models.RoleViewer, CreatedAt: created, UpdatedAt: created},
			}, nil
		},
	}
	svc := NewUserService(repo, slog.Default())

	users, err := svc.ListUsers(context.Background(), 20, 40)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "bob", users[1].Username)
	assert.Equal(t, 20, gotLimit)
	assert.Equal(t, 40, gotOffset)
}

func TestListUsers_Error(t *testing.T) {
	repo := &MockUserRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := NewUserService(repo, slog.Default())

	_, err := svc.ListUsers(context.Background(), 20, 0)
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestGetUser(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			if id == "u1" {
				return &models.User{ID: "u1", Username: "alice", Role: models.RoleViewer}, nil
			}
			return nil, models.ErrNotFound
		},
	}
	svc := NewUserService(repo, slog.Default())

	user, err := svc.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.GetUser(context.Background(), "u9")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	deleted := ""
	repo := &MockUserRepository{
		DeleteFunc: func(ctx context.Context, id string) error {
			if id == "missing" {
				return models.ErrNotFound
			}
			deleted = id
			return nil
		},
	}
	svc := NewUserService(repo, slog.Default())
	ctx := context.Background()

	err := svc.DeleteUser(ctx, "admin-1", "admin-1")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	require.NoError(t, svc.DeleteUser(ctx, "u2", "admin-1"))
	assert.Equal(t, "u2", deleted)

	assert.ErrorIs(t, svc.DeleteUser(ctx, "missing", "admin-1"), models.ErrNotFound)
}
