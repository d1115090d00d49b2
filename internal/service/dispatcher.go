// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"ghl-proxy-go/internal/client"
	"ghl-proxy-go/internal/config"
	"ghl-proxy-go/internal/credentials"
	"ghl-proxy-go/internal/model"
)

// UpstreamError is a non-2xx response from the upstream API.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	if e.empty() {
		return fmt.Sprintf("upstream responded %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream responded %d: %s", e.StatusCode, truncate(e.Body, 256))
}

// Message is the value relayed to the client under "error": the upstream body,
// or a status description when the upstream sent none.
func (e *UpstreamError) Message() any {
	if e.empty() {
		return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
	}
	return model.JSONValue(e.Body)
}

func (e *UpstreamError) empty() bool { return len(bytes.TrimSpace(e.Body)) == 0 }

// TransportError means no upstream response could be obtained: the connection
// failed, the call timed out, or the body could not be read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Dispatcher issues authenticated calls to the upstream API.
type Dispatcher struct {
	client  *client.UpstreamClient
	creds   *credentials.Store
	cfg     *config.Config
	logger  *slog.Logger
	baseURL *url.URL
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(c *client.UpstreamClient, creds *credentials.Store, cfg *config.Config, logger *slog.Logger) (*Dispatcher, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q has no host", cfg.Upstream.BaseURL)
	}
	return &Dispatcher{
		client:  c,
		creds:   creds,
		cfg:     cfg,
		logger:  logger.With("component", "dispatcher"),
		baseURL: u,
	}, nil
}

// Dispatch makes a single attempt at the upstream call described by pr.
//
// A 2xx response is returned as a result. A non-2xx response is returned as
// *UpstreamError, and a failure to get any response as *TransportError.
// credentials.ErrMissingUpstreamKey is returned, without calling upstream,
// when no API key is configured.
func (d *Dispatcher) Dispatch(pr *model.ProxyRequest) (*model.UpstreamResult, error) {
	apiKey := d.creds.UpstreamKey()
	if apiKey == "" {
		return nil, credentials.ErrMissingUpstreamKey
	}

	ctx := pr.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if !d.cfg.Upstream.CancelOnDisconnect {
		// The call outlives a disconnected client; the client timeout still bounds it.
		ctx = context.WithoutCancel(ctx)
	}

	d.logger.Debug("dispatching request",
		"method", pr.Method,
		"path", pr.Path,
	)

	res, err := d.client.Send(ctx, client.Call{
		Method: pr.Method,
		URL:    d.buildUpstreamURL(pr.Path, pr.Query),
		APIKey: apiKey,
		Body:   pr.Body,
	})
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: res.StatusCode, Body: res.Body}
	}
	return res, nil
}

// buildUpstreamURL joins the base URL's path with path and encodes query.
func (d *Dispatcher) buildUpstreamURL(path string, query url.Values) string {
	u := *d.baseURL
	u.Path = strings.TrimSuffix(d.baseURL.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	if strings.Contains(path, "%") {
		// Keep escaped path parameters (e.g. %2F) escaped on the wire.
		if unescaped, err := url.PathUnescape(u.Path); err == nil {
			u.RawPath = u.Path
			u.Path = unescaped
		}
	}
	return u.String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
