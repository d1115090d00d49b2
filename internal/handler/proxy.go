// Package handler implements the HTTP handlers and route wiring of the proxy.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"

	"ghl-proxy-go/internal/credentials"
	"ghl-proxy-go/internal/metrics"
	"ghl-proxy-go/internal/model"
	"ghl-proxy-go/internal/route"
	"ghl-proxy-go/internal/service"
)

// bearerPattern matches bearer tokens that may appear in error messages.
var bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[^\s"]+`)

// ProxyHandler translates table routes into upstream calls and relays the outcome.
type ProxyHandler struct {
	service *service.Dispatcher
	routes  *route.Table
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter is optional.
func NewProxyHandler(svc *service.Dispatcher, routes *route.Table, m *metrics.Metrics, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		routes:  routes,
		metrics: m,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle resolves the matched route, dispatches it upstream and writes the
// result. Any 2xx upstream response is reported as 200.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	rt, ok := h.routes.Lookup(req.Method, c.Path())
	if !ok {
		return echo.ErrNotFound
	}

	params, err := pathParams(c)
	if err != nil {
		return h.badRequest(c, err.Error())
	}
	in := route.Inbound{
		Path:  params,
		Query: c.QueryParams(),
	}
	if rt.ForwardBody {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return he
			}
			return h.badRequest(c, "could not read request body")
		}
		in.Body = body
	}

	target, err := rt.Target(in)
	if err != nil {
		return h.badRequest(c, err.Error())
	}

	res, err := h.service.Dispatch(&model.ProxyRequest{
		Ctx:    req.Context(),
		Method: target.Method,
		Path:   target.Path,
		Query:  target.Query,
		Body:   target.Body,
	})
	if err != nil {
		return h.mapError(c, rt, err)
	}
	h.logger.Debug("relaying upstream success",
		"operation", string(rt.Op),
		"upstream_status", res.StatusCode,
	)
	return writeJSONValue(c, http.StatusOK, res.Body)
}

func (h *ProxyHandler) mapError(c echo.Context, rt route.Route, err error) error {
	h.logger.Error("proxy error",
		"err", sanitizeError(err),
		"operation", string(rt.Op),
		"path", c.Request().URL.Path,
	)

	var ue *service.UpstreamError
	if errors.As(err, &ue) {
		h.countError("upstream")
		return c.JSON(ue.StatusCode, model.ErrorBody{Error: ue.Message()})
	}
	if errors.Is(err, credentials.ErrMissingUpstreamKey) {
		h.countError("config")
		return c.JSON(http.StatusInternalServerError, model.ErrorBody{Error: "upstream API key is not configured"})
	}

	h.countError("transport")
	return c.JSON(http.StatusInternalServerError, model.ErrorBody{Error: sanitizeError(err)})
}

func (h *ProxyHandler) badRequest(c echo.Context, msg string) error {
	h.countError("bad_request")
	return c.JSON(http.StatusBadRequest, model.ErrorBody{Error: msg})
}

func (h *ProxyHandler) countError(kind string) {
	if h.metrics != nil {
		h.metrics.DispatchErrors.WithLabelValues(kind).Inc()
	}
}

// writeJSONValue writes body verbatim when it is JSON, and as a JSON string otherwise.
func writeJSONValue(c echo.Context, status int, body []byte) error {
	if len(body) > 0 && json.Valid(body) {
		return c.JSONBlob(status, body)
	}
	return c.JSON(status, string(body))
}

// pathParams returns the decoded path parameters. Echo matches on the raw path
// when the client escaped characters non-canonically, and then its parameter
// values are still escaped.
func pathParams(c echo.Context) (map[string]string, error) {
	raw := c.Request().URL.RawPath != ""
	names := c.ParamNames()
	values := c.ParamValues()
	params := make(map[string]string, len(names))
	for i, name := range names {
		if i >= len(values) {
			break
		}
		v := values[i]
		if raw {
			unescaped, err := url.PathUnescape(v)
			if err != nil {
				return nil, fmt.Errorf("invalid escaping in parameter %s", name)
			}
			v = unescaped
		}
		params[name] = v
	}
	return params, nil
}

// sanitizeError redacts bearer tokens from error messages.
func sanitizeError(err error) string {
	return bearerPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
