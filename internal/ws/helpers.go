package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"roomchat/internal/observability"
)

const wsRoutingKey = "ws_events.rooms"

func newConnID() string {
	return uuid.NewString()
}

// publishWSEvent reports a connection lifecycle event on the AMQP exchange and in metrics.
func publishWSEvent(ctx context.Context, kind, resourceID, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(kind, event)

	var duration int64
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Headers:   observability.BuildHeaders(info.RequestID, info.TraceID),
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        kind,
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"principal_id": info.PrincipalID,
				"device_id":    info.DeviceID,
				"ip":           info.IP,
			},
		},
	})
}
