package lodge

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cast"
)

// MatchType is the strategy a rule uses to match a path.
type MatchType int

const (
	MatchMap MatchType = iota + 1
	MatchSimple
	MatchRegex
)

func (t MatchType) String() string {
	switch t {
	case MatchMap:
		return "map"
	case MatchSimple:
		return "simple"
	case MatchRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// FilterFunc accepts or rejects a captured path value.
type FilterFunc func(value string) bool

// TransformFunc converts a captured path value before it is recorded.
type TransformFunc func(value string) any

// Resolver looks up a named filter or transform. kind is "filter" or
// "transform".
type Resolver func(kind, name string) (any, error)

// ParamSpec describes how a captured value is checked and converted.
type ParamSpec struct {
	Name     string
	Optional bool

	group     int
	filters   []FilterFunc
	transform TransformFunc
}

func (p *ParamSpec) accept(v string) bool {
	for _, f := range p.filters {
		if !f(v) {
			return false
		}
	}
	return true
}

func (p *ParamSpec) apply(v string) any {
	if p.transform == nil {
		return v
	}
	return p.transform(v)
}

type segment struct {
	literal string
	param   *ParamSpec
}

// Rule is one compiled routing rule.
type Rule struct {
	Pattern   string
	Type      MatchType
	Target    string
	Methods   []string
	Full      bool
	Arguments *Bag

	segments    []segment
	regex       *regexp.Regexp
	regexParams []*ParamSpec
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Match tests the rule against an inbound method and a path without leading
// or trailing slashes. It returns the expanded target and the parameters,
// with captured values taking precedence over the rule's static arguments.
func (r *Rule) Match(method, path string) (string, *Bag, bool) {
	if !r.allows(method) {
		return "", nil, false
	}

	var (
		captured *Bag
		ok       bool
	)
	switch r.Type {
	case MatchMap:
		captured, ok = NewBag(), path == strings.Trim(r.Pattern, "/")
	case MatchSimple:
		captured, ok = r.matchSimple(path)
	case MatchRegex:
		captured, ok = r.matchRegex(path)
	}
	if !ok {
		return "", nil, false
	}

	params := NewBag()
	params.Merge(r.Arguments)
	params.Merge(captured)
	return r.expand(params), params, true
}

func (r *Rule) allows(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// matchSimple walks the segments left to right. An optional segment that is
// absent or rejected by its filter consumes nothing, so the same path token
// is offered to the next segment.
func (r *Rule) matchSimple(path string) (*Bag, bool) {
	var tokens []string
	if path != "" {
		tokens = strings.Split(path, "/")
	}

	captured := NewBag()
	pos := 0
	for _, seg := range r.segments {
		if seg.param == nil {
			if pos >= len(tokens) || !strings.EqualFold(tokens[pos], seg.literal) {
				return nil, false
			}
			pos++
			continue
		}

		p := seg.param
		if pos >= len(tokens) || !p.accept(tokens[pos]) {
			if p.Optional {
				continue
			}
			return nil, false
		}
		captured.Set(p.Name, p.apply(tokens[pos]))
		pos++
	}

	if r.Full && pos < len(tokens) {
		return nil, false
	}
	return captured, true
}

func (r *Rule) matchRegex(path string) (*Bag, bool) {
	m := r.regex.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}

	captured := NewBag()
	for _, p := range r.regexParams {
		if p.group >= len(m) {
			continue
		}
		v := m[p.group]
		if !p.accept(v) {
			return nil, false
		}
		captured.Set(p.Name, p.apply(v))
	}
	return captured, true
}

func (r *Rule) expand(params *Bag) string {
	if !strings.Contains(r.Target, "{") {
		return r.Target
	}
	return placeholder.ReplaceAllStringFunc(r.Target, func(s string) string {
		return params.String(s[1 : len(s)-1])
	})
}

// MatchRules returns the first rule matching method and path.
func MatchRules(rules []*Rule, method, path string) (*Rule, string, *Bag, bool) {
	for _, rule := range rules {
		if target, params, ok := rule.Match(method, path); ok {
			return rule, target, params, true
		}
	}
	return nil, "", nil, false
}

// CompileRules turns the router.rules configuration into rules, keeping
// declaration order. raw is either a list whose items are rule maps
// ({rule: ..., route: ...}) or single-key maps ({pattern: spec}), or a map of
// pattern to spec, compiled in sorted key order.
func CompileRules(raw any, resolve Resolver) ([]*Rule, error) {
	if raw == nil {
		return nil, nil
	}

	if m, ok := raw.(map[string]any); ok && m["rule"] == nil {
		return compilePatternMap(m, resolve)
	}

	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("router: rules must be a list or a map, got %T", raw)
	}

	var rules []*Rule
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, fmt.Errorf("router: rule %d: %w", i, err)
		}
		if _, ok := m["rule"]; ok {
			rule, err := compileRule(cast.ToString(m["rule"]), m, resolve)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
			continue
		}
		more, err := compilePatternMap(m, resolve)
		if err != nil {
			return nil, err
		}
		rules = append(rules, more...)
	}
	return rules, nil
}

func compilePatternMap(m map[string]any, resolve Resolver) ([]*Rule, error) {
	patterns := make([]string, 0, len(m))
	for p := range m {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	rules := make([]*Rule, 0, len(patterns))
	for _, pattern := range patterns {
		opts, err := specOptions(m[pattern])
		if err != nil {
			return nil, fmt.Errorf("router: rule %q: %w", pattern, err)
		}
		rule, err := compileRule(pattern, opts, resolve)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// specOptions normalizes "Ctl/act", ["Ctl/act", {options}] and {options}.
func specOptions(spec any) (map[string]any, error) {
	switch v := spec.(type) {
	case string:
		return map[string]any{"route": v}, nil
	case map[string]any:
		return v, nil
	}

	items, err := cast.ToSliceE(spec)
	if err != nil || len(items) == 0 {
		return nil, fmt.Errorf("unsupported rule spec %T", spec)
	}
	opts := map[string]any{}
	if len(items) > 1 {
		if extra, err := cast.ToStringMapE(items[1]); err == nil {
			for k, v := range extra {
				opts[k] = v
			}
		}
	}
	opts["route"] = cast.ToString(items[0])
	return opts, nil
}

func compileRule(pattern string, opts map[string]any, resolve Resolver) (*Rule, error) {
	rule := &Rule{
		Pattern:   pattern,
		Target:    ruleTarget(opts),
		Methods:   stringList(firstOf(opts, "method", "methods")),
		Full:      cast.ToBool(opts["full"]),
		Arguments: NewBag(),
	}
	if args, err := cast.ToStringMapE(opts["arguments"]); err == nil {
		rule.Arguments = BagOf(args)
	}

	params := map[string]any{}
	if p, err := cast.ToStringMapE(opts["parameters"]); err == nil {
		params = p
	}

	switch t := strings.ToLower(cast.ToString(opts["type"])); t {
	case "":
		rule.Type = classify(pattern)
	case "map":
		rule.Type = MatchMap
	case "simple", "standard":
		rule.Type = MatchSimple
	case "regex":
		rule.Type = MatchRegex
	default:
		return nil, fmt.Errorf("router: rule %q: unknown type %q", pattern, t)
	}

	var err error
	switch rule.Type {
	case MatchSimple:
		err = rule.compileSimple(params, resolve)
	case MatchRegex:
		err = rule.compileRegex(params, resolve)
	}
	if err != nil {
		return nil, fmt.Errorf("router: rule %q: %w", pattern, err)
	}
	return rule, nil
}

func ruleTarget(opts map[string]any) string {
	if route := cast.ToString(opts["route"]); route != "" {
		return route
	}
	controller := cast.ToString(opts["controller"])
	action := cast.ToString(opts["action"])
	if controller == "" && action == "" {
		return ""
	}
	return controller + "/" + action
}

func classify(pattern string) MatchType {
	if isDelimitedRegex(pattern) {
		return MatchRegex
	}
	for _, seg := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "[:") || seg == "$" {
			return MatchSimple
		}
	}
	return MatchMap
}

func isDelimitedRegex(pattern string) bool {
	return len(pattern) > 2 && pattern[0] == '#' && strings.LastIndexByte(pattern, '#') > 0
}

func (r *Rule) compileSimple(params map[string]any, resolve Resolver) error {
	pieces := strings.Split(strings.Trim(r.Pattern, "/"), "/")
	if n := len(pieces); n > 0 && pieces[n-1] == "$" {
		r.Full = true
		pieces = pieces[:n-1]
	}

	for _, piece := range pieces {
		var (
			inner    string
			optional bool
		)
		switch {
		case strings.HasPrefix(piece, "[:") && strings.HasSuffix(piece, "]"):
			inner, optional = piece[2:len(piece)-1], true
		case strings.HasPrefix(piece, ":"):
			inner = piece[1:]
		default:
			if piece != "" {
				r.segments = append(r.segments, segment{literal: piece})
			}
			continue
		}

		p := &ParamSpec{Optional: optional}
		if name, ok := strings.CutSuffix(inner, `\d`); ok {
			inner = name
			p.filters = append(p.filters, isDigits)
		}
		if inner == "" {
			return errors.New("capture segment without a name")
		}
		p.Name = inner

		if err := p.configure(params[inner], resolve); err != nil {
			return fmt.Errorf("parameter %s: %w", inner, err)
		}
		r.segments = append(r.segments, segment{param: p})
	}
	return nil
}

func (r *Rule) compileRegex(params map[string]any, resolve Resolver) error {
	expr := r.Pattern
	if isDelimitedRegex(expr) {
		end := strings.LastIndexByte(expr, '#')
		flags := expr[end+1:]
		expr = expr[1:end]
		if flags != "" {
			expr = "(?" + flags + ")" + expr
		}
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return err
	}
	r.regex = re

	seen := map[string]bool{}
	for i, name := range re.SubexpNames() {
		if name == "" {
			continue
		}
		p := &ParamSpec{Name: name, group: i}
		if err := p.configure(params[name], resolve); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		r.regexParams = append(r.regexParams, p)
		seen[name] = true
	}

	var positional []*ParamSpec
	for name, cfg := range params {
		if seen[name] {
			continue
		}
		p := &ParamSpec{Name: name}
		if group, err := cast.ToIntE(cfg); err == nil {
			p.group = group
		} else {
			m, err := cast.ToStringMapE(cfg)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", name, err)
			}
			p.group = cast.ToInt(firstOf(m, "group", "id"))
			if err := p.configure(m, resolve); err != nil {
				return fmt.Errorf("parameter %s: %w", name, err)
			}
		}
		if p.group <= 0 || p.group > re.NumSubexp() {
			return fmt.Errorf("parameter %s: group %d out of range", name, p.group)
		}
		positional = append(positional, p)
	}
	sort.Slice(positional, func(i, j int) bool { return positional[i].group < positional[j].group })
	r.regexParams = append(r.regexParams, positional...)
	return nil
}

// configure applies allow, deny, filter and transform options to p.
func (p *ParamSpec) configure(raw any, resolve Resolver) error {
	if raw == nil {
		return nil
	}
	opts, err := cast.ToStringMapE(raw)
	if err != nil {
		return err
	}

	if allow, ok := opts["allow"]; ok {
		p.filters = append(p.filters, inList(stringList(allow), true))
	}
	if deny, ok := opts["deny"]; ok {
		p.filters = append(p.filters, inList(stringList(deny), false))
	}

	if f, ok := opts["filter"]; ok {
		filter, err := buildFilter(f, resolve)
		if err != nil {
			return err
		}
		p.filters = append(p.filters, filter)
	}

	if t := firstOf(opts, "transform", "applier"); t != nil {
		transform, err := buildTransform(t, resolve)
		if err != nil {
			return err
		}
		p.transform = transform
	}
	return nil
}

func buildFilter(raw any, resolve Resolver) (FilterFunc, error) {
	switch v := raw.(type) {
	case FilterFunc:
		return v, nil
	case func(string) bool:
		return v, nil
	case string:
		switch v {
		case "digits", "-d", `\d`:
			return isDigits, nil
		case "alpha":
			return isAlpha, nil
		case "alnum":
			return isAlnum, nil
		}
		f, err := lookupNamed(resolve, "filter", v)
		if err != nil {
			return nil, err
		}
		return buildFilter(f, nil)
	}

	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("unsupported filter %T", raw)
	}
	// A list starting with null is a deny list.
	if len(items) > 0 && items[0] == nil {
		return inList(stringList(items[1:]), false), nil
	}
	return inList(stringList(items), true), nil
}

func buildTransform(raw any, resolve Resolver) (TransformFunc, error) {
	switch v := raw.(type) {
	case TransformFunc:
		return v, nil
	case func(string) any:
		return v, nil
	case string:
		switch v {
		case "int":
			return func(s string) any { return cast.ToInt(s) }, nil
		case "lower":
			return func(s string) any { return strings.ToLower(s) }, nil
		case "upper":
			return func(s string) any { return strings.ToUpper(s) }, nil
		case "ucfirst":
			return func(s string) any { return upperFirst(s) }, nil
		case "camel":
			return func(s string) any { return camelize(s) }, nil
		}
		t, err := lookupNamed(resolve, "transform", v)
		if err != nil {
			return nil, err
		}
		return buildTransform(t, nil)
	}
	return nil, fmt.Errorf("unsupported transform %T", raw)
}

func lookupNamed(resolve Resolver, kind, name string) (any, error) {
	if resolve == nil {
		return nil, fmt.Errorf("unknown %s %q", kind, name)
	}
	v, err := resolve(kind, name)
	if err != nil {
		return nil, fmt.Errorf("unknown %s %q: %w", kind, name, err)
	}
	if _, isString := v.(string); isString {
		return nil, fmt.Errorf("%s %q resolved to a string", kind, name)
	}
	return v, nil
}

func inList(list []string, allow bool) FilterFunc {
	return func(v string) bool {
		for _, item := range list {
			if item == v {
				return allow
			}
		}
		return !allow
	}
}

func isDigits(v string) bool {
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlpha(v string) bool {
	for _, r := range v {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return v != ""
}

func isAlnum(v string) bool {
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return v != ""
}

func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	}
	return cast.ToStringSlice(v)
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}
