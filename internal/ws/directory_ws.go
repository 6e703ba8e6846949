package ws

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"roomchat/internal/chat"
	"roomchat/internal/middleware"
	"roomchat/internal/models"
	"roomchat/internal/observability"
)

// DirectoryWebSocketHandler serves the live room list.
type DirectoryWebSocketHandler struct {
	hub       *Hub
	gate      *chat.Gate
	directory *chat.Directory
	feed      chat.ChangeFeed
}

func NewDirectoryWebSocketHandler(hub *Hub, gate *chat.Gate, directory *chat.Directory, feed chat.ChangeFeed) *DirectoryWebSocketHandler {
	return &DirectoryWebSocketHandler{hub: hub, gate: gate, directory: directory, feed: feed}
}

func (h *DirectoryWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("roomchat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	span.SetAttributes(attribute.String("ws.kind", "rooms"))
	c.Request = c.Request.WithContext(ctx)

	token, _ := observability.HandshakeToken(c.Request)
	session, err := h.gate.Open(ctx, token)
	if err != nil {
		middleware.Unauthorized(c, "invalid token")
		return
	}

	h.hub.serveView(c, span, session, "rooms", "", func(client *Client) liveStream {
		return chat.NewRoomListStream(h.feed, h.directory, func(rooms []models.RoomSummary) {
			client.Send(models.DirectoryEvent{Type: "rooms", Rooms: rooms})
		})
	})
}
