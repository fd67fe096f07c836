package services

import (
	"context"
	"log/slog"
	"time"
)

// failOpen runs fn under the storage timeout. Any error, including the deadline,
// is logged and replaced by fallback so the login path never blocks on storage.
func failOpen[T any](ctx context.Context, logger *slog.Logger, timeout time.Duration, op string, fallback T, fn func(context.Context) (T, error)) T {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil {
		logger.Error("storage call failed, failing open",
			slog.String("op", op),
			slog.Any("error", err))
		return fallback
	}
	return v
}
