package lodge

import (
	"bytes"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

var _ http.ResponseWriter = (*Response)(nil)

// Response buffers everything a request produces until the kernel writes it
// to the transport. Nothing reaches the client before the request finishes,
// so a failure can still replace the body and status.
type Response struct {
	status  int
	header  http.Header
	cookies []*fiber.Cookie
	body    bytes.Buffer
}

// NewResponse creates an empty 200 response.
func NewResponse() *Response {
	return &Response{status: fiber.StatusOK, header: make(http.Header)}
}

// Status returns the status code.
func (r *Response) Status() int { return r.status }

// SetStatus sets the status code.
func (r *Response) SetStatus(code int) { r.status = code }

// WriteHeader sets the status code. With Header and Write it lets the
// response stand in for an http.ResponseWriter.
func (r *Response) WriteHeader(code int) { r.status = code }

// Header returns the response headers.
func (r *Response) Header() http.Header { return r.header }

// SetCookie queues a cookie.
func (r *Response) SetCookie(c *fiber.Cookie) {
	r.cookies = append(r.cookies, c)
}

// Cookies returns the queued cookies.
func (r *Response) Cookies() []*fiber.Cookie { return r.cookies }

// Write appends p to the body.
func (r *Response) Write(p []byte) (int, error) { return r.body.Write(p) }

// WriteString appends s to the body.
func (r *Response) WriteString(s string) (int, error) { return r.body.WriteString(s) }

// Body returns the buffered body.
func (r *Response) Body() []byte { return r.body.Bytes() }

// ClearBody discards the buffered body. Headers and cookies are kept.
func (r *Response) ClearBody() { r.body.Reset() }

// WriteTo copies the response onto the fiber context.
func (r *Response) WriteTo(c *fiber.Ctx) error {
	for name, values := range r.header {
		for _, v := range values {
			c.Response().Header.Add(name, v)
		}
	}
	for _, cookie := range r.cookies {
		c.Cookie(cookie)
	}
	c.Status(r.status)
	return c.Send(r.body.Bytes())
}
