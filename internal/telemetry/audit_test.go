package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/mocks"
)

func TestEmitBuildsEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit_log.realtime", "realtime-service", "test")

	userID := int64(7)
	publisher.On("Publish", mock.Anything, "audit_log.realtime", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		return ok &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "realtime-service" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID != nil && *envelope.UserID == 7 &&
			envelope.Payload.Level == "INFO" &&
			envelope.Payload.Text == "hello"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "hello", "req-1", &userID)
	publisher.AssertExpectations(t)
}

func TestEmitEntityCarriesEntity(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit_log.realtime", "realtime-service", "test")

	publisher.On("Publish", mock.Anything, "audit_log.realtime", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		return ok && envelope.Payload.Entity == "message" && envelope.Payload.EntityID == 10
	})).Return(nil).Once()

	emitter.EmitEntity(context.Background(), "INFO", "message sent", "message", 10, "req-2", nil)
	publisher.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "noop", "req-3", nil)
	})
}
