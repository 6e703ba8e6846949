package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roomchat/internal/middleware"
	"roomchat/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func principalIDFromContext(c *gin.Context) *string {
	if principal, ok := middleware.Principal(c); ok && principal.ID != "" {
		id := principal.ID
		return &id
	}
	return nil
}

func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, level, action, roomID, text string) {
	if audit == nil {
		return
	}
	audit.Emit(c.Request.Context(), requestIDFromContext(c), principalIDFromContext(c), telemetry.AuditPayload{
		Level:  level,
		Action: action,
		RoomID: roomID,
		Text:   text,
	})
}
