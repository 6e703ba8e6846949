package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"roomchat/internal/telemetry"
)

// PublisherMock stands in for the AMQP publisher behind the audit emitter and keeps
// every audit envelope it is handed, in publish order.
type PublisherMock struct {
	mock.Mock

	mu     sync.Mutex
	audits []telemetry.AuditEnvelope
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	if env, ok := event.(telemetry.AuditEnvelope); ok {
		m.mu.Lock()
		m.audits = append(m.audits, env)
		m.mu.Unlock()
	}
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ExpectAudit expects one audit envelope with the given action on routingKey.
func (m *PublisherMock) ExpectAudit(routingKey, action string) *mock.Call {
	return m.On("Publish", mock.Anything, routingKey, mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Action == action
	})).Return(nil).Once()
}

// Audits returns the audit envelopes published so far.
func (m *PublisherMock) Audits() []telemetry.AuditEnvelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]telemetry.AuditEnvelope(nil), m.audits...)
}
