package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agorahub.app/backbone/internal/http/handler"
)

type RouterConfig struct {
	AdminAPIKey string
}

type Handlers struct {
	Invoke *handler.InvokeHandler
	Admin  *handler.AdminHandler
	Health *handler.HealthHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, cfg RouterConfig) {
	router.GET("/healthz", h.Health.Check)

	api := router.Group("/api")
	{
		api.POST("/command/:name", h.Invoke.Command)
		api.POST("/query/:name", h.Invoke.Query)
	}

	admin := router.Group("/admin", adminAuth(cfg.AdminAPIKey))
	{
		admin.GET("/dead-letters", h.Admin.ListDeadLetters)
		admin.POST("/dead-letters/replay", h.Admin.ReplayDeadLetter)
		admin.DELETE("/dead-letters", h.Admin.PurgeDeadLetter)
		admin.GET("/schemas", h.Admin.Schemas)
	}
}

// adminAuth gates the operator surface behind a static API key. An empty
// configured key disables the surface entirely rather than leaving it open.
func adminAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" || c.GetHeader("X-Admin-Key") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
