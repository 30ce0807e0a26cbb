package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"agorahub.app/backbone/internal/domain"
)

// Header names for the identity the gateway already authenticated. This
// service trusts the gateway; it only enforces capabilities, never
// credentials.
const (
	headerUserID       = "X-User-Id"
	headerAddress      = "X-Actor-Address"
	headerCapabilities = "X-Actor-Capabilities"
)

func actorFromHeaders(c *gin.Context) domain.Actor {
	actor := domain.Actor{
		Address: c.GetHeader(headerAddress),
	}
	if raw := c.GetHeader(headerUserID); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			actor.UserID = id
		}
	}
	for _, cap := range strings.Split(c.GetHeader(headerCapabilities), ",") {
		cap = strings.TrimSpace(cap)
		if cap == "" {
			continue
		}
		actor.Capabilities = append(actor.Capabilities, domain.Capability(cap))
	}
	return actor
}
