package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// NewHTTPErrorHandler returns the central echo error handler. Taxonomy
// errors map to their status codes; echo.HTTPError passes through; anything
// else becomes a 500 with the cause logged but not exposed.
func NewHTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := errorResponse{Error: errorBody{Kind: KindInternal, Message: "internal server error"}}

		var appErr *Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = HTTPStatus(appErr)
			msg := appErr.Message
			if appErr.Kind == KindInternal {
				msg = "internal server error"
			}
			body.Error = errorBody{Kind: appErr.Kind, Message: msg}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body.Error = errorBody{Kind: kindForStatus(status), Message: messageOf(httpErr)}
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Path()).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	default:
		return KindInternal
	}
}

func messageOf(he *echo.HTTPError) string {
	if s, ok := he.Message.(string); ok {
		return s
	}
	return http.StatusText(he.Code)
}
