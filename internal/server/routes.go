package server

import (
	"planvision/internal/server/middleware"
	"planvision/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Generation task routes
	apiRoutes.GET("/generations", routes.ListGenerationsHandler)
	apiRoutes.POST("/generations", routes.CreateGenerationHandler)
	apiRoutes.GET("/generations/:id", routes.GetGenerationHandler)
	apiRoutes.DELETE("/generations/:id", routes.DeleteGenerationHandler)

	// Analysis result routes
	apiRoutes.GET("/generations/:id/structure", routes.GetStructureHandler)
	apiRoutes.GET("/generations/:id/rooms", routes.GetRoomsHandler)
	apiRoutes.GET("/generations/:id/bills", routes.GetBillsHandler)
	apiRoutes.GET("/generations/:id/classifications", routes.GetClassificationsHandler)
	apiRoutes.GET("/generations/:id/pages", routes.GetPagesHandler)

	// Classification-only flow
	apiRoutes.POST("/classifications", routes.CreateClassificationHandler)
}
