package lodge

import (
	"log/slog"
	"strings"
)

// RuleRouter resolves requests with the declarative rules under
// router.rules. Rules are compiled on first dispatch and tried in order; the
// first match wins.
type RuleRouter struct {
	RouterBase

	rules    []*Rule
	compiled bool
}

// NewRuleRouter creates a rule router. It needs a Context before dispatching,
// which the container binds when it builds the router.
func NewRuleRouter() *RuleRouter {
	return &RuleRouter{}
}

// Rules returns the compiled rules.
func (r *RuleRouter) Rules() ([]*Rule, error) {
	if r.compiled {
		return r.rules, nil
	}
	rules, err := CompileRules(r.ctx.Registry().Get("router.rules", nil), r.resolve)
	if err != nil {
		return nil, err
	}
	r.rules, r.compiled = rules, true
	return rules, nil
}

// resolve finds named filters and transforms in the container, bound as
// router.filter.<name> and router.transform.<name>.
func (r *RuleRouter) resolve(kind, name string) (any, error) {
	return r.ctx.Get("router."+kind+"."+name, nil)
}

// Dispatch matches the current request. No match is not an error: the
// configured default controller and method apply.
func (r *RuleRouter) Dispatch() error {
	r.Begin()

	rules, err := r.Rules()
	if err != nil {
		r.state = StateIdle
		return err
	}

	req := r.ctx.Request()
	path := strings.Trim(req.Path(), "/")

	var controller, method string
	attrs := NewBag()
	if rule, target, params, ok := MatchRules(rules, req.Method(), path); ok {
		controller, method = splitTarget(target)
		attrs = params
		req.SetAttributes(params, false)

		r.ctx.Logger().Debug("route matched",
			slog.String("path", path),
			slog.String("rule", rule.Pattern),
			slog.String("target", target),
		)
	}

	r.SetResult(controller, method, attrs)
	return nil
}
