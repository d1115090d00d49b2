// Package model defines shared types for the proxy.
package model

import (
	"context"
	"encoding/json"
	"net/url"
)

// ProxyRequest is one upstream call built from a client request.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// UpstreamResult is a fully read upstream response.
type UpstreamResult struct {
	StatusCode int
	Body       []byte
}

// ErrorBody is the JSON shape of every error the proxy returns: {"error": <value>}.
type ErrorBody struct {
	Error any `json:"error"`
}

// JSONValue returns b unchanged as a raw JSON value when it is valid JSON,
// and as a JSON string otherwise.
func JSONValue(b []byte) any {
	if len(b) > 0 && json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}
