package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = "X-Request-ID"

// RequestID attaches a request id to the context and the response headers.
// An incoming X-Request-ID is honored so ids survive proxy hops.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.New().String()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// requestID returns the id stored by RequestID, or "" when that middleware
// did not run for this request.
func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
