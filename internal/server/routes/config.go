package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/segbench/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetConfigDefaultsHandler returns the default evaluation config
func GetConfigDefaultsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	return c.JSON(http.StatusOK, app.DefaultConfig())
}
