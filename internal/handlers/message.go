package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat/internal/chat"
	"roomchat/internal/repositories"
	"roomchat/internal/telemetry"
)

// MessageHandler manages room message endpoints.
type MessageHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	sender      *chat.Sender
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, sender *chat.Sender, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{roomRepo: roomRepo, messageRepo: messageRepo, sender: sender, audit: audit}
}

// ListMessages handles GET /rooms/:room_id/messages, oldest first.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if _, err := h.roomRepo.GetRoom(c.Request.Context(), roomID); err != nil {
		respondError(c, err, "failed to load room")
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage handles POST /rooms/:room_id/messages. The message reaches open
// streams through the change feed, not through this response.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomID := c.Param("room_id")
	msg, err := h.sender.Send(c.Request.Context(), roomID, principal, req.Content)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", telemetry.ActionRequestFailed, roomID, "send message: "+err.Error())
		respondError(c, err, "failed to store message")
		return
	}

	emitAudit(c, h.audit, "INFO", telemetry.ActionMessageSent, roomID, "message sent")
	c.JSON(http.StatusCreated, msg)
}
