package server

import (
	"github.com/labstack/echo/v4"

	"github.com/sanadlabs/sanad/internal/server/middleware"
	"github.com/sanadlabs/sanad/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Retrieval routes
	apiRoutes.POST("/query", routes.QueryHandler, middleware.RequirePermission("query.run"))

	// Span resolution routes
	apiRoutes.POST("/spans/quote", routes.ResolveQuoteHandler, middleware.RequirePermission("span.resolve"))
	apiRoutes.POST("/spans/anchor", routes.ResolveAnchorHandler, middleware.RequirePermission("span.resolve"))

	// Graph routes
	apiRoutes.GET("/graph/neighbors", routes.GetNeighborsHandler, middleware.RequirePermission("query.run"))
	apiRoutes.GET("/graph/expand", routes.GetExpandHandler, middleware.RequirePermission("query.run"))

	// Document routes
	apiRoutes.GET("/documents", routes.GetDocumentsHandler, middleware.RequirePermission("document.view"))
	apiRoutes.POST("/documents", routes.CreateDocumentHandler, middleware.RequirePermission("document.create"))
	apiRoutes.GET("/documents/:id", routes.GetDocumentHandler, middleware.RequirePermission("document.view"))
	apiRoutes.DELETE("/documents/:id", routes.DeleteDocumentHandler, middleware.RequirePermission("document.delete"))

	// Edge curation routes
	apiRoutes.PATCH("/edges/status", routes.SetEdgeStatusHandler, middleware.RequirePermission("edge.curate"))
}
