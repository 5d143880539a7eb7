// Package lodge is a small request/response framework on top of Fiber.
//
// Every request gets its own Context: a dependency container pre-loaded with
// the request, the response, the registry and the logger. The kernel builds
// the Context, runs the configured bootstraps and hands over to the App,
// which starts the services listed in app.services, dispatches a Router and
// invokes the resolved controller action.
//
// # Routing
//
// The RuleRouter reads router.rules from the registry. A rule is a pattern
// and a target:
//
//	router:
//	  rules:
//	    - "user/:id\d/edit": { controller: User, action: edit }
//	    - "post/[:page]": Post/list
//	    - "#^blog/(?P<slug>[a-z-]+)$#": Blog/show
//
// Plain paths match exactly, ":name" captures a segment, "[:name]" captures
// an optional one and a "#...#" pattern is a regular expression. Captured
// values become request attributes and, with router.parameter.inject.enable,
// action arguments:
//
//	type UserController struct{ lodge.ControllerBase }
//
//	func (c *UserController) ActionParams(string) []container.Param {
//		return []container.Param{container.P("id")}
//	}
//
//	func (c *UserController) Edit(id int) error {
//		c.Assign("id", id)
//		return c.Render("", nil)
//	}
//
// Controllers are registered under decorated names, see
// Context.ControllerName:
//
//	lodge.WithBootstrap(func(ctx *lodge.Context) error {
//		ctx.Register(ctx.ControllerName("User"), container.Ctor(func() *UserController {
//			return &UserController{}
//		}), false)
//		return nil
//	})
//
// The ActionRouter maps /admin/user_profile/show straight onto controller
// Admin/UserProfile and method Show.
//
// # Services
//
// Services have a register, start and stop lifecycle bound to the request.
// Deferred services start on first use. Package services provides cache,
// database, session, storage and log channel services backed by a
// process-wide pool.
package lodge
