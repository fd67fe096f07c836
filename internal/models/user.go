package models

import (
	"time"
)

// Roles understood by the inventory API
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

type User struct {
	ID                string
	Username          string
	PasswordHash      string
	Role              string // "admin" or "viewer"
	TokenKey          string // Per-user secret for composite token signing
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ValidRole reports whether role is one of the supported roles
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleViewer
}
