package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler converts any error that escapes a handler into the same
// ErrorResponse JSON the handlers emit, so clients never see echo's default
// HTML or text bodies.
func HTTPErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if s, ok := he.Message.(string); ok && s != "" {
				msg = strings.ToLower(s)
			} else {
				msg = strings.ToLower(http.StatusText(code))
			}
		}

		_ = c.JSON(code, ErrorResponse{Error: msg, Code: code})
	}
}
