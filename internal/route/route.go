// Package route declares the logical operations the proxy exposes and how
// each one maps onto an upstream API call.
package route

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Prefix is the inbound path prefix every protected route lives under.
const Prefix = "/v1"

// ErrMissingParam is returned when a value needed to build the upstream path is absent.
var ErrMissingParam = errors.New("missing required parameter")

// Operation names one logical proxy operation.
type Operation string

// Supported operations.
const (
	ListLocations       Operation = "list_locations"
	GetLocation         Operation = "get_location"
	SearchContacts      Operation = "search_contacts"
	CreateContact       Operation = "create_contact"
	ListPipelines       Operation = "list_pipelines"
	ListPipelineStages  Operation = "list_pipeline_stages"
	SearchOpportunities Operation = "search_opportunities"
	CreateOpportunity   Operation = "create_opportunity"
	ListWorkflows       Operation = "list_workflows"
	GetWorkflow         Operation = "get_workflow"
	SendMessage         Operation = "send_message"
)

// Route maps one inbound method and path pattern to an upstream call shape.
type Route struct {
	Op     Operation
	Method string
	// Pattern is the inbound path in router syntax, e.g. /v1/locations/:locationId.
	Pattern string
	// Upstream is the upstream path template. Each {name} placeholder is filled
	// from the path parameter of the same name, or from the query string when
	// name is listed in QueryParams.
	Upstream     string
	QueryParams  []string
	ForwardBody  bool
	ForwardQuery bool
}

// Inbound is the part of a client request a route draws from.
type Inbound struct {
	Path  map[string]string
	Query url.Values
	Body  []byte
}

// Target is the upstream call a route produces for one inbound request.
type Target struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Target builds the upstream call for in. The same inbound values always
// produce the same target.
func (r Route) Target(in Inbound) (Target, error) {
	path, err := r.upstreamPath(in)
	if err != nil {
		return Target{}, err
	}
	t := Target{Method: r.Method, Path: path}
	if r.ForwardQuery && len(in.Query) > 0 {
		t.Query = cloneValues(in.Query)
	}
	if r.ForwardBody && len(in.Body) > 0 {
		t.Body = in.Body
	}
	return t, nil
}

// RelativePattern returns Pattern with Prefix stripped, for registration on a prefixed group.
func (r Route) RelativePattern() string {
	return strings.TrimPrefix(r.Pattern, Prefix)
}

func (r Route) upstreamPath(in Inbound) (string, error) {
	var b strings.Builder
	rest := r.Upstream
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		n := strings.IndexByte(rest[open:], '}')
		if n < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := open + n
		b.WriteString(rest[:open])
		name := rest[open+1 : end]

		var val string
		if r.fromQuery(name) {
			val = in.Query.Get(name)
		} else {
			val = in.Path[name]
		}
		if val == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
		b.WriteString(url.PathEscape(val))
		rest = rest[end+1:]
	}
}

func (r Route) fromQuery(name string) bool {
	for _, q := range r.QueryParams {
		if q == name {
			return true
		}
	}
	return false
}

// placeholders returns the {name} placeholders of an upstream template in order.
func placeholders(tmpl string) ([]string, error) {
	var names []string
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("unbalanced '}' in %q", tmpl)
			}
			return names, nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder in %q", tmpl)
		}
		name := rest[open+1 : open+end]
		if name == "" || strings.ContainsAny(name, "{/") {
			return nil, fmt.Errorf("bad placeholder %q in %q", name, tmpl)
		}
		names = append(names, name)
		rest = rest[open+end+1:]
	}
}

// pathParams returns the :name segments of an inbound pattern.
func pathParams(pattern string) map[string]bool {
	params := make(map[string]bool)
	for _, seg := range strings.Split(pattern, "/") {
		if strings.HasPrefix(seg, ":") {
			params[seg[1:]] = true
		}
	}
	return params
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// knownMethods are the methods a route may be registered for.
var knownMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true,
}

func (r Route) validate() error {
	if r.Op == "" {
		return errors.New("operation is required")
	}
	if !knownMethods[r.Method] {
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	if r.Pattern != Prefix && !strings.HasPrefix(r.Pattern, Prefix+"/") {
		return fmt.Errorf("pattern %q is outside %s", r.Pattern, Prefix)
	}
	if !strings.HasPrefix(r.Upstream, "/") {
		return fmt.Errorf("upstream path %q must start with '/'", r.Upstream)
	}
	names, err := placeholders(r.Upstream)
	if err != nil {
		return err
	}
	params := pathParams(r.Pattern)
	for _, q := range r.QueryParams {
		if params[q] {
			return fmt.Errorf("placeholder %q is declared as both path and query parameter", q)
		}
	}
	for _, name := range names {
		if !params[name] && !r.fromQuery(name) {
			return fmt.Errorf("placeholder %q is neither a path parameter of %q nor a query parameter", name, r.Pattern)
		}
	}
	return nil
}
