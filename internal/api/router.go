package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liliang-cn/pdfqa/internal/api/middleware"
	"github.com/liliang-cn/pdfqa/internal/api/session"
	"github.com/liliang-cn/pdfqa/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(manager *service.Manager, logger *zap.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "sessions": manager.Count()})
	})

	// Session API (requires API key when configured)
	sessionHandler := session.NewHandler(manager)
	sessionGroup := r.Group("/api/sessions")
	sessionGroup.Use(middleware.Auth(cfg.APIKey))
	sessionHandler.RegisterRoutes(sessionGroup)

	return r
}
