package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"api-gateway-go/internal/service"
)

// ErrorResponse is the envelope for every error the gateway returns.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// NewHTTPErrorHandler renders framework and handler errors with the same
// {"detail": ...} envelope used for forward failures.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var status int
		var msg string
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = fmt.Sprint(he.Message)
			}
		} else {
			status, msg = service.MapError(err)
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"err", err,
				"path", c.Request().URL.Path,
				"status", status,
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, ErrorResponse{Detail: msg})
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}
