package cmd

import (
	"fmt"
	"log/slog"

	"github.com/signoffhq/signoff/pkg/cache"
)

// NewCacheInvalidator creates a Redis invalidator when a URL is configured
// and a no-op otherwise.
func NewCacheInvalidator(redisURL string, logger *slog.Logger) cache.Invalidator {
	if redisURL == "" {
		logger.Info("No Redis URL configured, cache invalidation disabled")

		return cache.NewNoop()
	}

	invalidator, err := cache.NewRedisInvalidator(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to create Redis invalidator: %w", err))
	}

	return invalidator
}
