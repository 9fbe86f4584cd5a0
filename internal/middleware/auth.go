package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/HamzaArc/Tontine-app-chat/internal/services"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
)

// RequireAuth returns a middleware that verifies JWT bearer tokens
func RequireAuth(jwtService *services.JWTService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Check if the token service is initialized
			if jwtService == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication not configured")
			}

			// Extract Authorization header
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, services.ErrMissingToken.Error())
			}

			// Parse Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, services.ErrInvalidToken.Error())
			}

			// Validate token
			claims, err := jwtService.Validate(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, services.ErrInvalidToken.Error())
			}

			// Set user info in context for downstream handlers
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextUserEmail, claims.Email)

			return next(c)
		}
	}
}
