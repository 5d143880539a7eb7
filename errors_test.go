package lodge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestErrorCodeName(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{fiber.StatusBadRequest, "Bad Request"},
		{fiber.StatusForbidden, "Forbidden"},
		{fiber.StatusNotFound, "Not Found"},
		{fiber.StatusMethodNotAllowed, "Method Not Allowed"},
		{fiber.StatusInternalServerError, "Internal Server Error"},
		{fiber.StatusServiceUnavailable, "Service Unavailable"},
		{418, "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorCodeName(tt.code))
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, fiber.StatusNotFound, StatusOf(fmt.Errorf("wrapped: %w", notFound("x"))))
	assert.Equal(t, fiber.StatusForbidden, StatusOf(fiber.NewError(fiber.StatusForbidden)))
	assert.Equal(t, fiber.StatusInternalServerError, StatusOf(&MissingParameterError{Name: "id"}))
	assert.Equal(t, fiber.StatusInternalServerError, StatusOf(&ConfigurationError{Key: "cache.class"}))
}

func TestErrorHTML(t *testing.T) {
	t.Run("without message", func(t *testing.T) {
		html := errorHTML(404, "Not Found", "")

		assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
		assert.Contains(t, html, "<title>404 - Not Found</title>")
		assert.Contains(t, html, ">404<")
		assert.NotContains(t, html, `class="details"`)
	})

	t.Run("escapes the message", func(t *testing.T) {
		html := errorHTML(500, "Internal Server Error", "<script>x</script>")

		assert.Contains(t, html, "&lt;script&gt;")
		assert.NotContains(t, html, "<script>x")
	})
}

func TestDefaultCatcherHidesDetailsOutsideDebug(t *testing.T) {
	for _, debug := range []bool{false, true} {
		t.Run(fmt.Sprint(debug), func(t *testing.T) {
			ctx := NewContext(nil, nil, nil, testLogger())
			ctx.Response().WriteString("partial output")

			DefaultCatcher(testLogger(), debug).Catch(ctx, fmt.Errorf("db: connection refused"))

			body := string(ctx.Response().Body())
			assert.Equal(t, fiber.StatusInternalServerError, ctx.Response().Status())
			assert.NotContains(t, body, "partial output")
			assert.Equal(t, debug, strings.Contains(body, "connection refused"))
		})
	}
}
