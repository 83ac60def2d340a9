// internal/api/router.go
package api

import (
	"das-service/internal/api/handlers"
	"das-service/internal/api/middleware"
	"das-service/internal/core/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Documents *handlers.DocumentHandler
	Admin     *handlers.AdminHandler
	Health    *handlers.HealthHandler
}

// NewRouter wires the routes of the DAS service.
func NewRouter(h Handlers, authService auth.Service, corsOrigins []string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS(corsOrigins))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/documents/upload", h.Documents.HandleUpload)
		apiV1.POST("/documents/text", h.Documents.HandleText)
		apiV1.GET("/documents/:id", h.Documents.HandleGet)
		apiV1.GET("/documents/:id/export", h.Documents.HandleExport)

		apiV1.POST("/admin/login", h.Admin.Login)
		apiV1.POST("/admin/logout", h.Admin.Logout)

		admin := apiV1.Group("/admin", middleware.RequireAdmin(authService, logger))
		{
			admin.GET("/documents", h.Admin.List)
			admin.PUT("/documents/:id", h.Admin.Replace)
		}
	}

	router.GET("/health", h.Health.Health)
	return router
}
