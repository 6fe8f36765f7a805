// Package route implements the declarative route table that binds gateway
// paths to backend services.
package route

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"api-gateway-go/internal/config"
	"api-gateway-go/internal/model"
)

//go:embed routes.yaml
var defaultRoutes []byte

// ErrInvalidBody is returned by Bind when a body transform cannot parse the
// inbound payload.
var ErrInvalidBody = errors.New("invalid request body")

// QueryMode selects how the inbound query string is carried upstream.
type QueryMode string

const (
	QueryPass QueryMode = "pass"
	QueryNone QueryMode = "none"
	QueryKeep QueryMode = "keep"
)

// BodyMode selects how the inbound body is carried upstream.
type BodyMode string

const (
	BodyPass    BodyMode = "pass"
	BodyNone    BodyMode = "none"
	BodyExtract BodyMode = "extract"
)

// QuerySpec is the query transform of a route.
type QuerySpec struct {
	Mode     QueryMode         `yaml:"mode"`
	Keep     []string          `yaml:"keep"`
	Set      map[string]string `yaml:"set"`
	Defaults map[string]string `yaml:"defaults"`
}

// BodySpec is the body transform of a route. In extract mode the upstream
// body is {Field: first non-empty Candidates value}.
type BodySpec struct {
	Mode       BodyMode `yaml:"mode"`
	Field      string   `yaml:"field"`
	Candidates []string `yaml:"candidates"`
}

// Route binds inbound methods on a gateway path to a backend path.
type Route struct {
	Name           string        `yaml:"name"`
	Methods        []string      `yaml:"methods"`
	Path           string        `yaml:"path"`
	Service        string        `yaml:"service"`
	Target         string        `yaml:"target"`
	UpstreamMethod string        `yaml:"upstream_method"`
	Timeout        time.Duration `yaml:"timeout"`
	ForwardHeaders *bool         `yaml:"forward_headers"`
	Query          QuerySpec     `yaml:"query"`
	Body           BodySpec      `yaml:"body"`

	echoPath string
	params   []string
	wildcard string
}

// Table is an ordered list of routes.
type Table struct {
	Routes []*Route
}

// Inbound is the part of a client request a route needs to build a
// ForwardRequest.
type Inbound struct {
	Method      string
	Params      map[string]string
	Header      http.Header
	Query       url.Values
	Body        []byte
	ContentType string
}

var paramPattern = regexp.MustCompile(`^\{([A-Za-z_][A-Za-z0-9_]*)(\.\.\.)?\}$`)

// Default returns the compiled-in route table.
func Default() (*Table, error) {
	return Parse(defaultRoutes)
}

// Load reads the route table named by cfg.Routes.File, or the default
// table when no file is configured.
func Load(cfg *config.Config) (*Table, error) {
	if cfg.Routes.File == "" {
		return Default()
	}
	data, err := os.ReadFile(cfg.Routes.File)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("routes file %s: %w", cfg.Routes.File, err)
	}
	return t, nil
}

// Parse decodes and validates a YAML route table.
func Parse(data []byte) (*Table, error) {
	var routes []*Route
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	if len(routes) == 0 {
		return nil, errors.New("route table is empty")
	}

	names := make(map[string]bool, len(routes))
	bindings := make(map[string]string)
	for i, r := range routes {
		if r == nil {
			return nil, fmt.Errorf("routes[%d]: empty entry", i)
		}
		if err := r.compile(); err != nil {
			if r.Name != "" {
				return nil, fmt.Errorf("route %q: %w", r.Name, err)
			}
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		if names[r.Name] {
			return nil, fmt.Errorf("duplicate route name %q", r.Name)
		}
		names[r.Name] = true
		for _, m := range r.Methods {
			key := m + " " + r.echoPath
			if other, ok := bindings[key]; ok {
				return nil, fmt.Errorf("route %q: %s %s already bound by %q", r.Name, m, r.Path, other)
			}
			bindings[key] = r.Name
		}
	}
	return &Table{Routes: routes}, nil
}

func (r *Route) compile() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Service == "" {
		return errors.New("service is required")
	}
	if len(r.Methods) == 0 {
		return errors.New("at least one method is required")
	}
	for i, m := range r.Methods {
		pm, err := model.ParseMethod(m)
		if err != nil {
			return err
		}
		r.Methods[i] = string(pm)
	}
	if r.UpstreamMethod != "" {
		pm, err := model.ParseMethod(r.UpstreamMethod)
		if err != nil {
			return fmt.Errorf("upstream_method: %w", err)
		}
		r.UpstreamMethod = string(pm)
	}
	if r.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("path %q must start with /", r.Path)
	}
	if !strings.HasPrefix(r.Target, "/") {
		return fmt.Errorf("target %q must start with /", r.Target)
	}

	if err := r.compilePath(); err != nil {
		return err
	}
	if err := r.checkTemplate("target", r.Target); err != nil {
		return err
	}

	switch r.Query.Mode {
	case "":
		r.Query.Mode = QueryPass
	case QueryPass, QueryNone:
	case QueryKeep:
		if len(r.Query.Keep) == 0 {
			return errors.New("query.keep is required in keep mode")
		}
	default:
		return fmt.Errorf("unknown query.mode %q", r.Query.Mode)
	}
	for k, v := range r.Query.Set {
		if err := r.checkTemplate("query.set."+k, v); err != nil {
			return err
		}
	}

	switch r.Body.Mode {
	case "":
		r.Body.Mode = BodyPass
	case BodyPass, BodyNone:
	case BodyExtract:
		if r.Body.Field == "" || len(r.Body.Candidates) == 0 {
			return errors.New("body.field and body.candidates are required in extract mode")
		}
	default:
		return fmt.Errorf("unknown body.mode %q", r.Body.Mode)
	}
	return nil
}

// compilePath turns {name} segments into echo :name params and a trailing
// {name...} into the echo wildcard.
func (r *Route) compilePath() error {
	segments := strings.Split(r.Path, "/")
	seen := make(map[string]bool)
	for i, seg := range segments {
		if !strings.Contains(seg, "{") && !strings.Contains(seg, "}") {
			continue
		}
		m := paramPattern.FindStringSubmatch(seg)
		if m == nil {
			return fmt.Errorf("path %q: malformed segment %q", r.Path, seg)
		}
		name := m[1]
		if seen[name] {
			return fmt.Errorf("path %q: duplicate param %q", r.Path, name)
		}
		seen[name] = true
		if m[2] != "" {
			if i != len(segments)-1 {
				return fmt.Errorf("path %q: {%s...} must be the last segment", r.Path, name)
			}
			r.wildcard = name
			segments[i] = "*"
			continue
		}
		r.params = append(r.params, name)
		segments[i] = ":" + name
	}
	r.echoPath = strings.Join(segments, "/")
	return nil
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\.\.\.)?\}`)

func (r *Route) checkTemplate(field, tmpl string) error {
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		if !r.hasParam(m[1]) {
			return fmt.Errorf("%s references unknown param %q", field, m[1])
		}
	}
	return nil
}

func (r *Route) hasParam(name string) bool {
	if name == r.wildcard && name != "" {
		return true
	}
	for _, p := range r.params {
		if p == name {
			return true
		}
	}
	return false
}

// EchoPath returns the route path in echo router syntax.
func (r *Route) EchoPath() string { return r.echoPath }

// PathParams collects the route's path parameter values through lookup,
// which receives echo param names (":name" without the colon, or "*").
func (r *Route) PathParams(lookup func(string) string) map[string]string {
	out := make(map[string]string, len(r.params)+1)
	for _, p := range r.params {
		out[p] = lookup(p)
	}
	if r.wildcard != "" {
		out[r.wildcard] = lookup("*")
	}
	return out
}

// Bind builds the ForwardRequest for one inbound call.
func (r *Route) Bind(in Inbound) (*model.ForwardRequest, error) {
	method := in.Method
	if r.UpstreamMethod != "" {
		method = r.UpstreamMethod
	}

	header := http.Header{}
	if r.ForwardHeaders == nil || *r.ForwardHeaders {
		header = in.Header
	}

	body, err := r.bindBody(in)
	if err != nil {
		return nil, err
	}

	return &model.ForwardRequest{
		Service: r.Service,
		Path:    expand(r.Target, in.Params),
		Method:  method,
		Header:  header,
		Query:   r.bindQuery(in.Query, in.Params),
		Body:    body,
		Timeout: r.Timeout,
	}, nil
}

func (r *Route) bindQuery(in url.Values, params map[string]string) url.Values {
	q := url.Values{}
	switch r.Query.Mode {
	case QueryNone:
	case QueryKeep:
		for _, k := range r.Query.Keep {
			if vals, ok := in[k]; ok {
				q[k] = append([]string(nil), vals...)
			}
		}
	default:
		for k, vals := range in {
			q[k] = append([]string(nil), vals...)
		}
	}

	if len(in) == 0 {
		for k, v := range r.Query.Defaults {
			q.Set(k, v)
		}
	}
	for k, tmpl := range r.Query.Set {
		q.Set(k, expand(tmpl, params))
	}
	return q
}

func (r *Route) bindBody(in Inbound) (*model.Payload, error) {
	switch r.Body.Mode {
	case BodyNone:
		return nil, nil
	case BodyExtract:
		obj := map[string]any{}
		if len(strings.TrimSpace(string(in.Body))) > 0 {
			if err := json.Unmarshal(in.Body, &obj); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
			}
		}
		value := ExtractField(obj, r.Body.Candidates)
		if value == nil {
			value = ""
		}
		data, err := json.Marshal(map[string]any{r.Body.Field: value})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		return &model.Payload{Data: data, ContentType: "application/json"}, nil
	default:
		if len(in.Body) == 0 {
			return nil, nil
		}
		return &model.Payload{Data: in.Body, ContentType: in.ContentType}, nil
	}
}

// ExtractField returns the value of the first candidate key present in obj
// with a non-empty value, or nil when none qualifies.
func ExtractField(obj map[string]any, candidates []string) any {
	for _, key := range candidates {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		return v
	}
	return nil
}

func expand(tmpl string, params map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(ph string) string {
		m := placeholderPattern.FindStringSubmatch(ph)
		return params[m[1]]
	})
}

// Prefixes returns the distinct static path prefixes of the table, at most
// two segments deep, for bounded metric labels.
func (t *Table) Prefixes() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range t.Routes {
		p := staticPrefix(r.Path, 2)
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func staticPrefix(path string, depth int) string {
	var b strings.Builder
	n := 0
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" || strings.Contains(seg, "{") || n == depth {
			break
		}
		b.WriteString("/")
		b.WriteString(seg)
		n++
	}
	return b.String()
}

// Services returns the distinct service names the table refers to, in
// first-use order.
func (t *Table) Services() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range t.Routes {
		if !seen[r.Service] {
			seen[r.Service] = true
			out = append(out, r.Service)
		}
	}
	return out
}
