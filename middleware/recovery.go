package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
)

// Recover turns handler panics into 500 responses and logs them with their
// stack trace.
func Recover(logger *slog.Logger) fiber.Handler {
	return fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			logger.Error("panic recovered",
				slog.String("panic", fmt.Sprint(e)),
				slog.String("path", c.Path()),
				slog.String("stack", string(debug.Stack())),
			)
		},
	})
}
