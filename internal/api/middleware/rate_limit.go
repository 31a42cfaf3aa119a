package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/leadops-io/leadops/internal/domain"
	"github.com/leadops-io/leadops/internal/ratelimit"
)

// Limiter is the fixed-window contract both the in-memory and Postgres
// stores satisfy.
type Limiter interface {
	Check(ctx context.Context, cfg ratelimit.Config) (ratelimit.Result, error)
}

// RateLimit enforces a per-workspace fixed window. It must run after Auth so
// the workspace is in context. A limiter store error admits the request.
func RateLimit(limiter Limiter, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspaceID, err := GetWorkspaceID(c)
		if err != nil {
			return err
		}

		result, err := limiter.Check(c.Context(), ratelimit.Config{
			Namespace:  "api",
			Identifier: workspaceID.String(),
			Limit:      limit,
			Window:     window,
		})
		if err != nil {
			return c.Next()
		}

		if result.Limited {
			c.Locals(LocalRetryAfter, result.RetryAfterSeconds)
			return domain.ErrRateLimitExceeded
		}

		return c.Next()
	}
}
