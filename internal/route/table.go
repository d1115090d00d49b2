package route

import (
	"fmt"
	"net/http"
)

// defaultRoutes is the proxy's route set, in registration order.
var defaultRoutes = []Route{
	{Op: ListLocations, Method: http.MethodGet, Pattern: "/v1/locations", Upstream: "/locations/", ForwardQuery: true},
	{Op: GetLocation, Method: http.MethodGet, Pattern: "/v1/locations/:locationId", Upstream: "/locations/{locationId}", ForwardQuery: true},

	// GET with a JSON body, forwarded as the search payload.
	{Op: SearchContacts, Method: http.MethodGet, Pattern: "/v1/contacts/search", Upstream: "/contacts/", ForwardBody: true, ForwardQuery: true},
	{Op: CreateContact, Method: http.MethodPost, Pattern: "/v1/contacts", Upstream: "/contacts/", ForwardBody: true, ForwardQuery: true},

	{Op: ListPipelines, Method: http.MethodGet, Pattern: "/v1/pipelines", Upstream: "/locations/{locationId}/pipelines", QueryParams: []string{"locationId"}, ForwardQuery: true},
	{Op: ListPipelineStages, Method: http.MethodGet, Pattern: "/v1/pipelines/:pipelineId/stages", Upstream: "/locations/{locationId}/pipelines/{pipelineId}/stages", QueryParams: []string{"locationId"}, ForwardQuery: true},

	{Op: SearchOpportunities, Method: http.MethodGet, Pattern: "/v1/opportunities/search", Upstream: "/opportunities/search", ForwardQuery: true},
	{Op: CreateOpportunity, Method: http.MethodPost, Pattern: "/v1/opportunities", Upstream: "/opportunities/", ForwardBody: true, ForwardQuery: true},

	{Op: ListWorkflows, Method: http.MethodGet, Pattern: "/v1/workflows", Upstream: "/locations/{locationId}/workflows", QueryParams: []string{"locationId"}, ForwardQuery: true},
	{Op: GetWorkflow, Method: http.MethodGet, Pattern: "/v1/workflows/:workflowId", Upstream: "/locations/{locationId}/workflows/{workflowId}", QueryParams: []string{"locationId"}, ForwardQuery: true},

	{Op: SendMessage, Method: http.MethodPost, Pattern: "/v1/messages/send", Upstream: "/conversations/messages", ForwardBody: true, ForwardQuery: true},
}

type key struct {
	method  string
	pattern string
}

// Table is an immutable, ordered set of routes.
type Table struct {
	routes []Route
	index  map[key]int
}

// NewTable validates routes and builds a Table. Every (method, pattern) pair
// and every operation must be unique.
func NewTable(routes []Route) (*Table, error) {
	t := &Table{
		routes: make([]Route, 0, len(routes)),
		index:  make(map[key]int, len(routes)),
	}
	ops := make(map[Operation]bool, len(routes))
	for _, r := range routes {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("route %s %s: %w", r.Method, r.Pattern, err)
		}
		k := key{r.Method, r.Pattern}
		if _, dup := t.index[k]; dup {
			return nil, fmt.Errorf("route %s %s: registered twice", r.Method, r.Pattern)
		}
		if ops[r.Op] {
			return nil, fmt.Errorf("route %s %s: operation %q registered twice", r.Method, r.Pattern, r.Op)
		}
		r.QueryParams = append([]string(nil), r.QueryParams...)
		t.index[k] = len(t.routes)
		ops[r.Op] = true
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// Default returns the table of every operation the proxy supports.
func Default() (*Table, error) {
	return NewTable(defaultRoutes)
}

// Routes returns the routes in registration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.routes) }

// Lookup finds the route registered for method and inbound pattern.
func (t *Table) Lookup(method, pattern string) (Route, bool) {
	i, ok := t.index[key{method, pattern}]
	if !ok {
		return Route{}, false
	}
	return t.routes[i], true
}
