package event

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/logger"
)

// AuditLogHandler writes every billing event to the log with its JSON payload,
// giving operators a trail of issued invoices, allocations and reversals
type AuditLogHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(serializer *EventSerializer, l *zap.Logger) *AuditLogHandler {
	if serializer == nil {
		serializer = NewEventSerializer()
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &AuditLogHandler{serializer: serializer, logger: l.Named("audit")}
}

// Handle logs the event
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.Any("payload", json.RawMessage(payload)),
	}
	fields = append(fields, logger.TraceFields(ctx)...)
	h.logger.Info("Billing event", fields...)
	return nil
}

// EventTypes returns nil: the audit trail receives every event
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
