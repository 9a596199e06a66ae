package handler

import (
	"errors"
	"net/http"
	"strings"

	"buyer-lead-service/internal/model"
	"buyer-lead-service/pkg/database"
	"buyer-lead-service/pkg/jwtutil"
	"buyer-lead-service/pkg/logger"
	"buyer-lead-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultDemoEmail = "demo@example.com"
	adminDemoEmail   = "admin@example.com"
)

// DemoLoginRequest is the optional demo login request body
type DemoLoginRequest struct {
	Email string `json:"email"`
}

// DemoLogin handles POST /api/auth/demo-login. It signs in as a demo account
// without a password, creating the account on first use. The admin demo email
// gets the ADMIN role, everyone else is a regular USER.
func DemoLogin(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req DemoLoginRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid login request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "Invalid request data"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		email = defaultDemoEmail
	}

	db := database.GetDB()

	var user model.User
	err := db.WithContext(c.Request().Context()).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = model.User{
			Email:    email,
			FullName: "Demo User",
			Role:     model.RoleUser,
		}
		if email == adminDemoEmail {
			user.FullName = "Admin User"
			user.Role = model.RoleAdmin
		}
		if err := db.WithContext(c.Request().Context()).Create(&user).Error; err != nil {
			log.Error("Failed to create demo user", zap.String("email", email), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "Internal server error"})
		}
		log.Info("Demo user created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	} else if err != nil {
		log.Error("Failed to look up demo user", zap.String("email", email), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "Internal server error"})
	}

	token, err := jwtutil.GenerateToken(user.ID, user.Email, user.FullName, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "Internal server error"})
	}

	log.Info("Demo login succeeded",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", user.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"token": token,
			"user":  user,
		},
		"message": "Logged in successfully",
	})
}

// Me handles GET /api/auth/me and returns the authenticated user
func Me(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "authentication required"})
	}

	var user model.User
	err := database.GetDB().WithContext(c.Request().Context()).First(&user, "id = ?", claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "User not found"})
	} else if err != nil {
		log.Error("Failed to load current user", zap.String("user_id", claims.UserID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": user})
}
