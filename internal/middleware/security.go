package middleware

import (
	"github.com/labstack/echo/v4"
)

// hopByHopHeaders are connection-scoped and never reach the handlers.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// responseHeaders are set on every response. Relayed CRM payloads carry
// contact data, so nothing may be cached by intermediaries.
var responseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders strips hop-by-hop headers from the inbound request and
// stamps responseHeaders before the response is committed.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			for _, h := range hopByHopHeaders {
				req.Header.Del(h)
			}

			c.Response().Before(func() {
				hdr := c.Response().Header()
				for _, kv := range responseHeaders {
					hdr.Set(kv[0], kv[1])
				}
			})

			return next(c)
		}
	}
}
