package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/leadops-io/leadops/internal/domain"
)

// CronAuth guards internal cron endpoints with an exact-match shared
// secret. The compare is constant time so response timing leaks nothing
// about the secret.
func CronAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return domain.ErrUnauthorized
		}

		token := extractBearerToken(c)
		if token == "" {
			return domain.ErrUnauthorized
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return domain.ErrUnauthorized
		}

		return c.Next()
	}
}
