package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"roomchat/internal/chat"
	"roomchat/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var signedOutFrame = map[string]string{"type": "signed_out"}

type liveStream interface {
	Start(ctx context.Context) error
	Close()
}

// serveView upgrades the request and runs one live view until the peer goes away, the
// principal signs out, or the hub is closed. The view session is owned from here on.
func (h *Hub) serveView(c *gin.Context, span trace.Span, session *chat.ViewSession, kind, resourceID string, newStream func(*Client) liveStream) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		session.Close()
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		PrincipalID: session.Principal.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, info, kind, resourceID)
	h.Add(client)

	observability.IncWSActive(kind)
	publishWSEvent(c.Request.Context(), kind, resourceID, "ws_connect", info, "")

	// the request context ends with the handler; the view outlives it
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	stream := newStream(client)
	if err := stream.Start(ctx); err != nil {
		log.Printf("websocket stream start failed kind=%s resource_id=%s: %v", kind, resourceID, err)
		client.closeWith(websocket.CloseInternalServerErr, "could not load")
		h.teardown(ctx, cancel, client, session, stream, err.Error())
		return
	}

	go func() {
		readErr := make(chan error, 1)
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					readErr <- err
					return
				}
			}
		}()

		var closeReason string
		select {
		case err := <-readErr:
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishWSEvent(ctx, kind, resourceID, "ws_error", info, closeReason)
			}
		case <-session.SignedOut():
			closeReason = "signed out"
			stream.Close()
			client.Send(signedOutFrame)
			client.closeWith(websocket.CloseNormalClosure, closeReason)
		}
		h.teardown(ctx, cancel, client, session, stream, closeReason)
	}()
}

func (h *Hub) teardown(ctx context.Context, cancel context.CancelFunc, client *Client, session *chat.ViewSession, stream liveStream, reason string) {
	stream.Close()
	session.Close()
	h.Remove(client)
	client.conn.Close()

	observability.DecWSActive(client.kind)
	publishWSEvent(ctx, client.kind, client.resourceID, "ws_disconnect", client.info, reason)
	cancel()
}
