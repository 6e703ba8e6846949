package ws

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"roomchat/internal/chat"
	"roomchat/internal/middleware"
	"roomchat/internal/models"
	"roomchat/internal/observability"
	"roomchat/internal/repositories"
)

// RoomWebSocketHandler serves the live message list of one room.
type RoomWebSocketHandler struct {
	hub      *Hub
	gate     *chat.Gate
	joiner   *chat.Joiner
	feed     chat.ChangeFeed
	messages repositories.MessageRepository
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler.
func NewRoomWebSocketHandler(hub *Hub, gate *chat.Gate, joiner *chat.Joiner, feed chat.ChangeFeed, messages repositories.MessageRepository) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{hub: hub, gate: gate, joiner: joiner, feed: feed, messages: messages}
}

// Handle authenticates, opens (and joins) the room, then upgrades. The first frame is
// the full message list; every change to the room's messages sends the list again.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	roomID := c.Param("room_id")

	ctx, span := otel.Tracer("roomchat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	span.SetAttributes(attribute.String("ws.kind", "room"), attribute.String("room.id", roomID))
	c.Request = c.Request.WithContext(ctx)

	token, _ := observability.HandshakeToken(c.Request)
	session, err := h.gate.Open(ctx, token)
	if err != nil {
		middleware.Unauthorized(c, "invalid token")
		return
	}

	view, err := h.joiner.OpenRoom(ctx, roomID, session.Principal)
	if err != nil {
		session.Close()
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "back": "/rooms"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open room"})
		return
	}

	// change rows carry the canonical id, not whatever form the URL used
	roomID = view.Room.ID
	h.hub.serveView(c, span, session, "room", roomID, func(client *Client) liveStream {
		return chat.NewMessageStream(h.feed, h.messages, roomID, func(msgs []models.Message) {
			client.Send(models.RoomEvent{Type: "messages", RoomID: roomID, Messages: msgs})
		})
	})
}
