package telemetry

import (
	"context"
	"log"
	"time"
)

// Audit actions emitted by the service.
const (
	ActionSignedIn      = "signed_in"
	ActionSignInFailed  = "sign_in_failed"
	ActionSignedOut     = "signed_out"
	ActionRoomCreated   = "room_created"
	ActionRoomJoined    = "room_joined"
	ActionRoomLeft      = "room_left"
	ActionMessageSent   = "message_sent"
	ActionRequestFailed = "request_failed"
	ActionAuditTest     = "audit_test"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	PrincipalID   *string      `json:"principal_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action"`
	RoomID string `json:"room_id,omitempty"`
	Text   string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one audit record. Publish failures are logged and otherwise ignored.
func (e *AuditEmitter) Emit(ctx context.Context, requestID string, principalID *string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	log.Printf("audit emit: level=%s action=%s request_id=%s room_id=%s text=%q", payload.Level, payload.Action, requestID, payload.RoomID, payload.Text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		PrincipalID:   principalID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
