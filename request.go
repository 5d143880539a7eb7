package lodge

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// Request is the transport-independent view of an inbound request.
type Request struct {
	method     string
	path       string
	body       []byte
	query      *Bag
	header     *Bag
	cookies    *Bag
	attributes *Bag
}

// NewRequest creates a request for method and path.
func NewRequest(method, path string) *Request {
	return &Request{
		method:     method,
		path:       path,
		query:      NewBag(),
		header:     NewBag(),
		cookies:    NewBag(),
		attributes: NewBag(),
	}
}

// RequestFromFiber copies the parts of c the framework reads. The copy stays
// valid after the fiber handler returns.
func RequestFromFiber(c *fiber.Ctx) *Request {
	r := NewRequest(utils.CopyString(c.Method()), utils.CopyString(c.Path()))
	r.body = utils.CopyBytes(c.Body())

	for k, v := range c.Queries() {
		r.query.Set(utils.CopyString(k), utils.CopyString(v))
	}
	for k, vs := range c.GetReqHeaders() {
		if len(vs) > 0 {
			r.header.Set(http.CanonicalHeaderKey(k), utils.CopyString(vs[0]))
		}
	}
	c.Request().Header.VisitAllCookie(func(k, v []byte) {
		r.cookies.Set(string(k), string(v))
	})
	return r
}

// Method returns the upper-cased HTTP method, GET when unset.
func (r *Request) Method() string {
	if r.method == "" {
		return fiber.MethodGet
	}
	return strings.ToUpper(r.method)
}

// Path returns the request path.
func (r *Request) Path() string { return r.path }

// Body returns the raw request body.
func (r *Request) Body() []byte { return r.body }

// SetBody replaces the raw request body.
func (r *Request) SetBody(b []byte) { r.body = b }

// Query returns the query parameters.
func (r *Request) Query() *Bag { return r.query }

// Header returns the request headers, first value per canonical name.
func (r *Request) Header() *Bag { return r.header }

// Cookies returns the request cookies.
func (r *Request) Cookies() *Bag { return r.cookies }

// Attributes returns the values resolved while routing.
func (r *Request) Attributes() *Bag { return r.attributes }

// SetAttributes merges attrs into the attributes, or replaces them entirely
// when replace is true.
func (r *Request) SetAttributes(attrs *Bag, replace bool) {
	if replace {
		r.attributes.Replace(attrs)
		return
	}
	r.attributes.Merge(attrs)
}
