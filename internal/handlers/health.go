package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports liveness. The store is pinged so orchestrators restart the
// process when the database connection is gone for good.
func (h *HealthHandler) Health(c echo.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "database unavailable")
	}
	if err := sqlDB.PingContext(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "database unavailable")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
