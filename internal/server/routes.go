package server

import (
	"net/http"

	"github.com/OFFIS-RIT/segbench/internal/server/middleware"
	"github.com/OFFIS-RIT/segbench/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	apiRoutes.GET("/config/defaults", routes.GetConfigDefaultsHandler)

	// Evaluation routes
	apiRoutes.POST("/evaluations", routes.PostEvaluationHandler, middleware.RequirePermission(middleware.PermissionRun))

	// Job routes
	apiRoutes.POST("/jobs", routes.PostJobHandler, middleware.RequirePermission(middleware.PermissionRun))
	apiRoutes.GET("/jobs/:id", routes.GetJobHandler, middleware.RequirePermission(middleware.PermissionView))
	apiRoutes.POST("/jobs/:id/export", routes.PostJobExportHandler, middleware.RequirePermission(middleware.PermissionExport))
}
