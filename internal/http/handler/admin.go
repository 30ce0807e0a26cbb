package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/relay"
	"agorahub.app/backbone/internal/store"
)

// AdminHandler exposes the operator surface: dead letter inspection, replay
// and operation schema introspection.
type AdminHandler struct {
	bus        *execution.Bus
	dispatcher *relay.Dispatcher
	stores     execution.StoreProvider
}

func NewAdminHandler(bus *execution.Bus, dispatcher *relay.Dispatcher, stores execution.StoreProvider) *AdminHandler {
	return &AdminHandler{
		bus:        bus,
		dispatcher: dispatcher,
		stores:     stores,
	}
}

func (h *AdminHandler) ListDeadLetters(c *gin.Context) {
	ctx := c.Request.Context()

	limit := int32(100)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = int32(n)
	}

	letters, err := h.stores.DeadLetters().List(ctx, c.Query("consumer"), limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list dead letters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dead_letters": letters, "count": len(letters)})
}

type replayRequest struct {
	Consumer string `json:"consumer" binding:"required"`
	EventID  int64  `json:"event_id" binding:"required"`
}

func (h *AdminHandler) ReplayDeadLetter(c *gin.Context) {
	ctx := c.Request.Context()

	var req replayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dispatcher.Replay(ctx, req.Consumer, req.EventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		slog.ErrorContext(ctx, "replay failed",
			"error", err,
			"consumer", req.Consumer,
			"event_id", req.EventID)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"replayed": true})
}

func (h *AdminHandler) PurgeDeadLetter(c *gin.Context) {
	ctx := c.Request.Context()

	var req replayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.stores.DeadLetters().Purge(ctx, req.Consumer, req.EventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dead letter not found"})
			return
		}
		slog.ErrorContext(ctx, "purge failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": true})
}

func (h *AdminHandler) Schemas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operations": h.bus.Schemas()})
}
