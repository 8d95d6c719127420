package middleware

import (
	"github.com/labstack/echo/v4"
)

// apiHeaders go on every response; the API only ever serves JSON.
var apiHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":         "no-referrer",
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets the static API headers. Strict-Transport-Security is
// added only when strictTransport is set, since development runs over plain
// HTTP. Responses default to Cache-Control: no-store because they carry
// patient records; a handler that sets its own Cache-Control keeps it.
func SecurityHeaders(strictTransport bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()
			h := res.Header()
			for k, v := range apiHeaders {
				h.Set(k, v)
			}
			if strictTransport {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			res.Before(func() {
				if h.Get("Cache-Control") == "" {
					h.Set("Cache-Control", "no-store")
				}
			})
			return next(c)
		}
	}
}
