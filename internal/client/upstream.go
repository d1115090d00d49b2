// Package client provides the upstream HTTP client for the LeadConnector API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"ghl-proxy-go/internal/config"
	"ghl-proxy-go/internal/metrics"
	"ghl-proxy-go/internal/model"
)

// UserAgent identifies the proxy to the upstream API.
const UserAgent = "ghl-proxy-go/1.0"

// Call is one authenticated request to the LeadConnector API.
type Call struct {
	Method string
	URL    string
	APIKey string
	// Body is sent as is when non-empty, including on GET.
	Body []byte
}

// UpstreamClient sends calls to the upstream API over a shared connection pool.
type UpstreamClient struct {
	httpClient *http.Client
	version    string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		version: cfg.Upstream.Version,
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Send issues call with the LeadConnector headers and reads the whole response.
// Any status code is returned as a result; only a failure to obtain a response
// is an error. ctx bounds the call in addition to the client timeout.
func (c *UpstreamClient) Send(ctx context.Context, call Call) (*model.UpstreamResult, error) {
	req, err := c.newRequest(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	c.logger.Debug("upstream request",
		"method", req.Method,
		"path", req.URL.EscapedPath(),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(req.Method, resp, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	return &model.UpstreamResult{StatusCode: resp.StatusCode, Body: data}, nil
}

func (c *UpstreamClient) newRequest(ctx context.Context, call Call) (*http.Request, error) {
	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+call.APIKey)
	req.Header.Set("Version", c.version)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// observe records latency for every call and the status for answered ones.
func (c *UpstreamClient) observe(method string, resp *http.Response, d time.Duration) {
	if c.metrics == nil {
		return
	}
	method = metrics.NormalizeMethod(method)
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(d.Seconds())
	if resp != nil {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	}
}
