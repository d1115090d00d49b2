package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ghl-proxy-go/internal/credentials"
	"ghl-proxy-go/internal/metrics"
	"ghl-proxy-go/internal/model"
)

// ErrInvalidProxyKey is the message returned for a missing or wrong proxy key.
const ErrInvalidProxyKey = "Invalid or missing proxy key"

// ProxyKeyAuth returns an Echo middleware that admits a request only when the
// named header exactly equals the configured proxy key. While no proxy key is
// configured every request is rejected. The metrics parameter is optional.
//
// The comparison is a plain string compare and is not timing-safe.
func ProxyKeyAuth(creds *credentials.Store, header string, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			want := creds.ProxyKey()
			got := c.Request().Header.Get(header)
			if want == "" || got == "" || got != want {
				if m != nil {
					m.AuthRejections.Inc()
				}
				return c.JSON(http.StatusUnauthorized, model.ErrorBody{Error: ErrInvalidProxyKey})
			}
			return next(c)
		}
	}
}
