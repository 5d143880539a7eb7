package lodge

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// NotFoundError reports that no route, controller or action matched.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return "not found: " + e.Message }

// MissingParameterError reports an action parameter that could not be bound.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q", e.Name)
}

// ConfigurationError reports a required registry key that is absent.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s is required", e.Key)
}

func notFound(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// StatusOf maps an error to an HTTP status: 404 for NotFoundError, 500 for
// anything else.
func StatusOf(err error) int {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return fiber.StatusNotFound
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// Catcher turns a request failure into a response.
type Catcher interface {
	Catch(ctx *Context, err error)
}

// CatcherFunc adapts a function to Catcher.
type CatcherFunc func(ctx *Context, err error)

// Catch calls f.
func (f CatcherFunc) Catch(ctx *Context, err error) { f(ctx, err) }

// DefaultCatcher returns a catcher that logs the failure and writes JSON for
// API clients and a small HTML page otherwise. Error details are only shown
// when debug is true.
func DefaultCatcher(logger *slog.Logger, debug bool) Catcher {
	return CatcherFunc(func(ctx *Context, err error) {
		code := StatusOf(err)
		req, resp := ctx.Request(), ctx.Response()

		logger.Error("request failed",
			slog.Any("error", err),
			slog.String("path", req.Path()),
			slog.String("method", req.Method()),
			slog.Int("status", code),
		)

		resp.ClearBody()
		resp.SetStatus(code)

		message := ""
		if debug {
			message = err.Error()
		}

		if strings.Contains(req.Header().String(fiber.HeaderAccept), fiber.MIMEApplicationJSON) {
			resp.Header().Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
			body, _ := json.Marshal(fiber.Map{"error": ErrorCodeName(code), "message": message})
			_, _ = resp.Write(body)
			return
		}

		resp.Header().Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		_, _ = resp.WriteString(errorHTML(code, ErrorCodeName(code), message))
	})
}

// ErrorCodeName returns a human-readable name for common HTTP status codes.
func ErrorCodeName(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusForbidden:
		return "Forbidden"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Error"
	}
}

// errorHTML generates a simple, styled HTML error page.
func errorHTML(code int, title, message string) string {
	details := ""
	if message != "" {
		details = fmt.Sprintf(`<pre class="details">%s</pre>`, html.EscapeString(message))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>%d - %s</title>
    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; text-align: center; padding: 60px; color: #333; background: #f8f9fa; }
        h1 { font-size: 72px; margin: 0; color: #dc3545; }
        h2 { font-size: 24px; color: #666; }
        .details { display: inline-block; text-align: left; background: #f1f1f1; padding: 10px; border-radius: 4px; }
    </style>
</head>
<body>
    <h1>%d</h1>
    <h2>%s</h2>
    %s
</body>
</html>`, code, title, code, title, details)
}
