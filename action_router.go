package lodge

import "strings"

// ActionRouter maps paths straight onto controllers: /admin/user_profile/show
// resolves controller "Admin/UserProfile" and method "Show". A single segment
// names the controller and uses the default method.
type ActionRouter struct {
	RouterBase
}

// NewActionRouter creates an action router.
func NewActionRouter() *ActionRouter {
	return &ActionRouter{}
}

// Dispatch resolves the current request path.
func (r *ActionRouter) Dispatch() error {
	r.Begin()

	path := strings.Trim(r.ctx.Request().Path(), "/")

	var pieces []string
	if path != "" {
		for _, p := range strings.Split(path, "/") {
			pieces = append(pieces, camelize(p))
		}
	}

	var controller, method string
	switch n := len(pieces); {
	case n == 1:
		controller = pieces[0]
	case n > 1:
		controller = strings.Join(pieces[:n-1], "/")
		method = pieces[n-1]
	}

	r.SetResult(controller, method, nil)
	return nil
}
