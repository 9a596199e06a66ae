package middleware

import (
	"net/http"
	"strings"

	"buyer-lead-service/pkg/jwtutil"
	"buyer-lead-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the Bearer JWT and stores the user claims in the
// request context
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)

		// Extract the token from the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "Missing or invalid authorization header"})
		}

		// Check if the header format is valid
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Warn("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "Missing or invalid authorization header"})
		}

		tokenString := parts[1]

		// Validate the token
		claims, err := jwtutil.ValidateToken(tokenString)
		if err != nil {
			log.Warn("Invalid or expired token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "Invalid or expired token"})
		}

		// Store the claims in the context for later use
		c.Set("user", claims)
		log.Debug("JWT token validated successfully",
			zap.String("user_id", claims.UserID),
			zap.String("email", claims.Email))

		return next(c)
	}
}
