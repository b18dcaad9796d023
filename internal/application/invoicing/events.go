package invoicing

import (
	"context"

	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// publishEvents publishes and clears the pending events of each aggregate.
// Called only after the unit of work committed; a publish failure is logged
// and does not fail the operation.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		events := agg.GetDomainEvents()
		if publisher != nil && len(events) > 0 {
			if err := publisher.Publish(ctx, events...); err != nil {
				logger.Warn("failed to publish domain events",
					zap.String("aggregate_id", agg.GetID().String()),
					zap.Int("events", len(events)),
					zap.Error(err),
				)
			}
		}
		agg.ClearDomainEvents()
	}
}
