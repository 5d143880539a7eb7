package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger emits one structured line per request. Paths starting with
// one of skip are not logged; with no skip list, /_health is skipped.
func RequestLogger(logger *slog.Logger, skip ...string) fiber.Handler {
	if len(skip) == 0 {
		skip = []string{"/_health"}
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		for _, prefix := range skip {
			if strings.HasPrefix(path, prefix) {
				return err
			}
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", path),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		logger.Info("http request", attrs...)
		return err
	}
}
