package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

// Helmet sets the usual security headers. An empty referrerPolicy means
// "same-origin".
func Helmet(referrerPolicy string) fiber.Handler {
	if referrerPolicy == "" {
		referrerPolicy = "same-origin"
	}
	return helmet.New(helmet.Config{
		ReferrerPolicy: referrerPolicy,
	})
}
