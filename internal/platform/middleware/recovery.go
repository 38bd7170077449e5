package middleware

import (
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a plain 500 instead of tearing down
// the server. The stack is captured at the panic site and logged with the
// request that triggered it.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				buf := make([]byte, 8192)
				buf = buf[:runtime.Stack(buf, false)]

				req := c.Request()
				logger.Error().
					Interface("panic", r).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Str("request_id", requestID(c)).
					Bytes("stack", buf).
					Msg("recovered from panic")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
