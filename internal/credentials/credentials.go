// Package credentials holds the two secrets the proxy works with: the key
// callers must present, and the key the proxy presents upstream.
package credentials

import (
	"errors"
	"fmt"
	"log/slog"

	"ghl-proxy-go/internal/config"
)

var (
	// ErrMissingProxyKey is returned when no inbound proxy key is configured.
	ErrMissingProxyKey = errors.New("proxy key is not configured (set proxy.key or PROXY_KEY)")

	// ErrMissingUpstreamKey is returned when no upstream API key is configured.
	ErrMissingUpstreamKey = errors.New("upstream API key is not configured (set upstream.api_key or GHL_API_KEY)")
)

// Store is an immutable view of the configured secrets.
type Store struct {
	proxyKey    string
	upstreamKey string
}

// New builds a Store from configuration.
//
// With proxy.require_credentials set, a missing secret fails startup.
// Otherwise startup proceeds: the access guard rejects every protected
// request while the proxy key is unset, and the dispatcher refuses to call
// upstream without an API key.
func New(cfg *config.Config) (*Store, error) {
	s := &Store{
		proxyKey:    cfg.Proxy.Key,
		upstreamKey: cfg.Upstream.APIKey,
	}
	if cfg.Proxy.RequireCredentials {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("credentials: %w", err)
		}
	}
	return s, nil
}

// ProxyKey returns the key inbound callers must present.
func (s *Store) ProxyKey() string { return s.proxyKey }

// UpstreamKey returns the bearer token sent to the upstream API.
func (s *Store) UpstreamKey() string { return s.upstreamKey }

// Validate reports every secret that is unset.
func (s *Store) Validate() error {
	var errs []error
	if s.proxyKey == "" {
		errs = append(errs, ErrMissingProxyKey)
	}
	if s.upstreamKey == "" {
		errs = append(errs, ErrMissingUpstreamKey)
	}
	return errors.Join(errs...)
}

// WarnMissing logs one warning per unset secret.
func (s *Store) WarnMissing(logger *slog.Logger) {
	if s.proxyKey == "" {
		logger.Warn("proxy key is not set; every /v1 request will be rejected")
	}
	if s.upstreamKey == "" {
		logger.Warn("upstream API key is not set; proxied calls will fail")
	}
}
