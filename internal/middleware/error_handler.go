package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CustomErrorHandler creates a custom error handler for Echo
// Every error becomes a JSON body of the form {"error": "..."}.
func CustomErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	errorMessage := ""

	// Check if it's an Echo HTTPError
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code

		// Try to extract message from HTTPError
		if msg, ok := he.Message.(string); ok && msg != "" {
			errorMessage = msg
		}

		// Default message per status if no custom message provided
		if errorMessage == "" {
			switch code {
			case http.StatusNotFound:
				errorMessage = "resource not found"
			case http.StatusForbidden:
				errorMessage = "you don't have permission to access this resource"
			case http.StatusUnauthorized:
				errorMessage = "authentication required"
			case http.StatusBadRequest:
				errorMessage = "the request could not be processed"
			default:
				errorMessage = "something went wrong, please try again later"
			}
		}
	} else {
		// Non-HTTPError, never leak internals to the client
		errorMessage = "something went wrong, please try again later"
	}

	if code >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", code,
			"error", err,
		)
	}

	if c.Response().Committed {
		return
	}

	if writeErr := c.JSON(code, map[string]string{"error": errorMessage}); writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}
