package database

import (
	"errors"

	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError converts pgx errors into model sentinels where one applies
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503", "23502", "23514": // foreign_key, not_null, check
			return models.ErrBadRequest
		}
	}

	return err
}

// StorageError maps err and wraps anything that is not a domain sentinel
// (connection loss, timeouts, unexpected SQL errors) as a *models.StorageError.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	mapped := MapPostgresError(err)
	switch {
	case errors.Is(mapped, models.ErrNotFound),
		errors.Is(mapped, models.ErrConflict),
		errors.Is(mapped, models.ErrBadRequest):
		return mapped
	}
	return models.NewStorageError(op, err)
}
