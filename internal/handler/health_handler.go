package handler

import (
	"net/http"
	"time"

	"buyer-lead-service/pkg/database"

	"github.com/labstack/echo/v4"
)

// HealthCheck handles GET /health and reports service and database status
func HealthCheck(c echo.Context) error {
	status := "ok"
	dbStatus := "up"

	sqlDB, err := database.GetDB().DB()
	if err != nil || sqlDB.Ping() != nil {
		status = "degraded"
		dbStatus = "down"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, echo.Map{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
