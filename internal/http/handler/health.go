package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"agorahub.app/backbone/core/db"
)

type HealthHandler struct {
	db  *db.DB
	rdb *redis.Client
}

func NewHealthHandler(database *db.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: database, rdb: rdb}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
		return
	}
	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
