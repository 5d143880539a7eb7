package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// SecFetchConfig configures SecFetchSite.
type SecFetchConfig struct {
	// Allowed Sec-Fetch-Site values. Defaults to same-origin and none.
	Allowed []string
	// Methods that are checked. Defaults to POST, PUT, PATCH and DELETE.
	Methods []string
	Skip    func(*fiber.Ctx) bool
}

// SecFetchSite rejects state-changing requests whose Sec-Fetch-Site header
// is missing or not allowed. Browsers set the header themselves, so a
// missing one means a non-browser client.
func SecFetchSite(cfg SecFetchConfig) fiber.Handler {
	if len(cfg.Allowed) == 0 {
		cfg.Allowed = []string{"same-origin", "none"}
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete}
	}

	methods := make(map[string]bool, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods[m] = true
	}
	allowed := make(map[string]bool, len(cfg.Allowed))
	for _, v := range cfg.Allowed {
		allowed[v] = true
	}

	return func(c *fiber.Ctx) error {
		if (cfg.Skip != nil && cfg.Skip(c)) || !methods[c.Method()] {
			return c.Next()
		}

		switch site := c.Get("Sec-Fetch-Site"); {
		case site == "":
			return fiber.NewError(fiber.StatusForbidden, "browser requests only")
		case !allowed[site]:
			return fiber.NewError(fiber.StatusForbidden, "cross-site request blocked")
		}
		return c.Next()
	}
}
