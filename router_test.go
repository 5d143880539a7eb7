package lodge

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/lodge/container"
	"github.com/karloscodes/lodge/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestContext(t *testing.T, data map[string]any, method, path string) *Context {
	t.Helper()
	k := NewKernel(registry.NewMapRegistry(data), testLogger())
	ctx, err := k.NewContext(NewRequest(method, path), nil)
	require.NoError(t, err)
	return ctx
}

func dispatchRules(t *testing.T, rules any, method, path string) DispatchResult {
	t.Helper()
	ctx := newTestContext(t, map[string]any{"router": map[string]any{"rules": rules}}, method, path)
	r, err := container.Resolve[*RuleRouter](ctx.Container, NameRuleRouter)
	require.NoError(t, err)
	require.NoError(t, r.Dispatch())
	assert.Equal(t, StateResolved, r.State())
	return r.Result()
}

func attrs(res DispatchResult) map[string]any {
	if res.Attributes == nil {
		return map[string]any{}
	}
	return res.Attributes.All()
}

func TestSimpleRule(t *testing.T) {
	rules := map[string]any{`user/:id\d/edit`: "User/edit"}

	res := dispatchRules(t, rules, "GET", "/user/42/edit")
	assert.Equal(t, "User", res.OriginalController)
	assert.Equal(t, "edit", res.OriginalMethod)
	assert.Equal(t, "app/controller/UserController", res.Controller)
	assert.Equal(t, "Edit", res.Method)
	assert.Equal(t, map[string]any{"id": "42"}, attrs(res))

	res = dispatchRules(t, rules, "GET", "/user/abc/edit")
	assert.Equal(t, "Home", res.OriginalController, "no match falls back to the default controller")
	assert.Equal(t, "index", res.OriginalMethod)
	assert.Empty(t, attrs(res))
}

func TestOptionalSegment(t *testing.T) {
	rules := map[string]any{"post/[:page]": "Post/list"}

	res := dispatchRules(t, rules, "GET", "/post")
	assert.Equal(t, "Post", res.OriginalController)
	assert.NotContains(t, attrs(res), "page")

	res = dispatchRules(t, rules, "GET", "/post/3")
	assert.Equal(t, "Post", res.OriginalController)
	assert.Equal(t, "3", attrs(res)["page"])
}

func TestOptionalFilteredSegmentConsumesNothing(t *testing.T) {
	rules := map[string]any{`archive/[:year\d]/:slug`: "Archive/show"}

	res := dispatchRules(t, rules, "GET", "/archive/hello")
	assert.Equal(t, "Archive", res.OriginalController)
	assert.Equal(t, map[string]any{"slug": "hello"}, attrs(res))

	res = dispatchRules(t, rules, "GET", "/archive/2024/hello")
	assert.Equal(t, map[string]any{"year": "2024", "slug": "hello"}, attrs(res))
}

func TestFirstMatchWins(t *testing.T) {
	rules := []any{
		map[string]any{"page/:name": "First/show"},
		map[string]any{"page/:slug": "Second/show"},
	}
	res := dispatchRules(t, rules, "GET", "/page/about")
	assert.Equal(t, "First", res.OriginalController)
	assert.Equal(t, map[string]any{"name": "about"}, attrs(res))
}

func TestDispatchIsIdempotent(t *testing.T) {
	ctx := newTestContext(t, map[string]any{
		"router": map[string]any{"rules": map[string]any{"/hello/:name": []any{"Greeting/sayHello"}}},
	}, "GET", "/hello/world")
	r, err := container.Resolve[*RuleRouter](ctx.Container, NameRuleRouter)
	require.NoError(t, err)

	require.NoError(t, r.Dispatch())
	first := r.Result()
	require.NoError(t, r.Dispatch())
	second := r.Result()

	assert.Equal(t, first.Controller, second.Controller)
	assert.Equal(t, first.Method, second.Method)
	assert.Equal(t, attrs(first), attrs(second))
	assert.Equal(t, "SayHello", second.Method)
	assert.Equal(t, "world", attrs(second)["name"])
}

func TestRuleOptions(t *testing.T) {
	t.Run("methods", func(t *testing.T) {
		rules := []any{map[string]any{"rule": "form", "route": "Form/submit", "method": "POST"}}
		assert.Equal(t, "Form", dispatchRules(t, rules, "POST", "/form").OriginalController)
		assert.Equal(t, "Home", dispatchRules(t, rules, "GET", "/form").OriginalController)
	})

	t.Run("map rule", func(t *testing.T) {
		rules := map[string]any{"about/team": "Page/team"}
		assert.Equal(t, "Page", dispatchRules(t, rules, "GET", "/about/team").OriginalController)
		assert.Equal(t, "Home", dispatchRules(t, rules, "GET", "/about/team/x").OriginalController)
	})

	t.Run("full match", func(t *testing.T) {
		rules := map[string]any{"tag/:name/$": "Tag/show"}
		assert.Equal(t, "Tag", dispatchRules(t, rules, "GET", "/tag/go").OriginalController)
		assert.Equal(t, "Home", dispatchRules(t, rules, "GET", "/tag/go/extra").OriginalController)
	})

	t.Run("regex with named groups", func(t *testing.T) {
		rules := map[string]any{`#^blog/(?P<slug>[a-z-]+)$#`: "Blog/show"}
		res := dispatchRules(t, rules, "GET", "/blog/hello-world")
		assert.Equal(t, "Blog", res.OriginalController)
		assert.Equal(t, "hello-world", attrs(res)["slug"])
	})

	t.Run("regex with positional parameters", func(t *testing.T) {
		rules := []any{map[string]any{
			"rule":       `^v(\d+)/(\w+)$`,
			"type":       "regex",
			"route":      "Api/call",
			"parameters": map[string]any{"version": map[string]any{"group": 1, "transform": "int"}, "name": 2},
		}}
		res := dispatchRules(t, rules, "GET", "/v2/users")
		assert.Equal(t, map[string]any{"version": 2, "name": "users"}, attrs(res))
	})

	t.Run("target placeholders", func(t *testing.T) {
		rules := map[string]any{":kind/view": "{kind}/view"}
		res := dispatchRules(t, rules, "GET", "/Book/view")
		assert.Equal(t, "Book", res.OriginalController)
		assert.Equal(t, "view", res.OriginalMethod)
	})

	t.Run("static arguments", func(t *testing.T) {
		rules := map[string]any{"feed/:format": []any{"Feed/show", map[string]any{"arguments": map[string]any{"format": "rss", "limit": 10}}}}
		res := dispatchRules(t, rules, "GET", "/feed/atom")
		assert.Equal(t, map[string]any{"format": "atom", "limit": 10}, attrs(res), "captured values win over arguments")
	})

	t.Run("allow and transform", func(t *testing.T) {
		rules := map[string]any{"lang/:code": []any{"Lang/set", map[string]any{
			"parameters": map[string]any{"code": map[string]any{"allow": []any{"en", "de"}, "transform": "upper"}},
		}}}
		assert.Equal(t, "EN", attrs(dispatchRules(t, rules, "GET", "/lang/en"))["code"])
		assert.Equal(t, "Home", dispatchRules(t, rules, "GET", "/lang/fr").OriginalController)
	})
}

func TestNamedFilters(t *testing.T) {
	ctx := newTestContext(t, map[string]any{
		"router": map[string]any{"rules": map[string]any{
			"n/:v": []any{"Num/show", map[string]any{"parameters": map[string]any{"v": map[string]any{"filter": "even"}}}},
		}},
	}, "GET", "/n/4")
	ctx.ShareInstance("router.filter.even", FilterFunc(func(v string) bool {
		return len(v) == 1 && (v[0]-'0')%2 == 0
	}))

	r, err := container.Resolve[*RuleRouter](ctx.Container, NameRuleRouter)
	require.NoError(t, err)
	require.NoError(t, r.Dispatch())
	assert.Equal(t, "Num", r.Result().OriginalController)
}

func TestUnknownFilterIsACompileError(t *testing.T) {
	ctx := newTestContext(t, map[string]any{
		"router": map[string]any{"rules": map[string]any{
			"n/:v": []any{"Num/show", map[string]any{"parameters": map[string]any{"v": map[string]any{"filter": "nope"}}}},
		}},
	}, "GET", "/n/4")

	r, err := container.Resolve[*RuleRouter](ctx.Container, NameRuleRouter)
	require.NoError(t, err)
	assert.ErrorContains(t, r.Dispatch(), `unknown filter "nope"`)
}

func TestControllerDecoration(t *testing.T) {
	ctx := newTestContext(t, map[string]any{
		"app":    map[string]any{"package": "shop"},
		"router": map[string]any{
			"controller": map[string]any{"namespace": "web", "postfix": "Handler"},
			"method":     map[string]any{"prefix": "do_", "postfix": "Action"},
			"rules":      map[string]any{"x": "Cart/add"},
		},
	}, "GET", "/x")

	r, err := container.Resolve[*RuleRouter](ctx.Container, NameRuleRouter)
	require.NoError(t, err)
	require.NoError(t, r.Dispatch())
	assert.Equal(t, "shop/web/CartHandler", r.Result().Controller)
	assert.Equal(t, "Do_addAction", r.Result().Method)
}

func TestActionRouter(t *testing.T) {
	tests := []struct {
		path       string
		controller string
		method     string
	}{
		{"/admin/user_profile/show", "Admin/UserProfile", "Show"},
		{"/blog", "Blog", "index"},
		{"/", "Home", "index"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ctx := newTestContext(t, nil, "GET", tt.path)
			r, err := container.Resolve[*ActionRouter](ctx.Container, NameActionRouter)
			require.NoError(t, err)
			require.NoError(t, r.Dispatch())
			assert.Equal(t, tt.controller, r.Result().OriginalController)
			assert.Equal(t, tt.method, r.Result().OriginalMethod)
		})
	}
}
