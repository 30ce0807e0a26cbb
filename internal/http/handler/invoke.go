package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/store"
)

// InvokeHandler adapts HTTP requests onto the bus. The request body is the
// raw operation payload; identity arrives in gateway headers.
type InvokeHandler struct {
	bus *execution.Bus
}

func NewInvokeHandler(bus *execution.Bus) *InvokeHandler {
	return &InvokeHandler{bus: bus}
}

func (h *InvokeHandler) Command(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body"})
		return
	}

	var aggregateID *string
	if agg := c.Query("aggregate_id"); agg != "" {
		aggregateID = &agg
	}

	result, err := h.bus.InvokeCommand(ctx, name, aggregateID, actorFromHeaders(c), raw)
	if err != nil {
		writeError(c, name, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *InvokeHandler) Query(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body"})
		return
	}

	result, err := h.bus.InvokeQuery(ctx, name, actorFromHeaders(c), raw)
	if err != nil {
		writeError(c, name, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func writeError(c *gin.Context, op string, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, execution.ErrUnknownOperation):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown operation"})
	case execution.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case execution.IsAuthorization(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case execution.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		slog.ErrorContext(ctx, "operation failed", "error", err, "operation", op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
