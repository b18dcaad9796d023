package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/utility"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/telemetry"
)

// UtilityBillingService loads utility configuration and meter readings and
// feeds them to the utility computer.
type UtilityBillingService struct {
	tenantRepo  tenancy.TenantRepository
	configRepo  utility.ConfigRepository
	readingRepo utility.MeterReadingRepository
	logger      *zap.Logger
}

// NewUtilityBillingService creates a new UtilityBillingService
func NewUtilityBillingService(
	tenantRepo tenancy.TenantRepository,
	configRepo utility.ConfigRepository,
	readingRepo utility.MeterReadingRepository,
	logger *zap.Logger,
) *UtilityBillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UtilityBillingService{
		tenantRepo:  tenantRepo,
		configRepo:  configRepo,
		readingRepo: readingRepo,
		logger:      logger,
	}
}

// tenantCounts caches active tenant counts per property for one run
type tenantCounts map[uuid.UUID]int64

// ComputeLineItems returns the utility line items of one tenant for [periodStart, periodEnd].
// A unit without configs yields an empty list.
func (s *UtilityBillingService) ComputeLineItems(
	ctx context.Context,
	tenant *tenancy.Tenant,
	periodStart, periodEnd time.Time,
) ([]invoicing.LineItem, error) {
	return s.computeLineItems(ctx, tenant, periodStart, periodEnd, tenantCounts{})
}

func (s *UtilityBillingService) computeLineItems(
	ctx context.Context,
	tenant *tenancy.Tenant,
	periodStart, periodEnd time.Time,
	counts tenantCounts,
) ([]invoicing.LineItem, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "utility_billing", "compute_line_items")
	defer span.End()

	if !tenant.HasResolvableChain() {
		err := shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Tenant %s has no resolvable unit/property chain", tenant.ID))
		telemetry.RecordError(span, err)
		return nil, err
	}
	propertyID, unitID := *tenant.PropertyID, *tenant.UnitID
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenant.ID.String(),
		telemetry.SpanAttrPropertyID, propertyID.String(),
		telemetry.SpanAttrUnitID, unitID.String(),
	)

	configs, err := s.configRepo.FindActiveForUnit(ctx, propertyID, unitID, periodStart, periodEnd)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load utility configs: %w", err)
	}
	if len(configs) == 0 {
		return []invoicing.LineItem{}, nil
	}

	in := utility.Input{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Configs:     configs,
		Readings:    make(map[uuid.UUID]utility.Readings),
	}

	if utility.NeedsTenantCount(configs) {
		n, ok := counts[propertyID]
		if !ok {
			n, err = s.tenantRepo.CountActiveInProperty(ctx, propertyID)
			if err != nil {
				telemetry.RecordError(span, err)
				return nil, fmt.Errorf("failed to count active tenants: %w", err)
			}
			counts[propertyID] = n
		}
		in.ActiveTenants = n
	}

	// Readings taken any time on the last day of the period count for it.
	readingCutoff := shared.CivilDate(periodEnd).AddDate(0, 0, 1).Add(-time.Nanosecond)
	for i := range configs {
		cfg := &configs[i]
		if cfg.BillingMode != utility.BillingModeMetered {
			continue
		}
		readings, err := s.readingRepo.FindLatest(ctx, unitID, cfg.ID, readingCutoff, 2)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to load meter readings: %w", err)
		}
		var r utility.Readings
		if len(readings) > 0 {
			r.Latest = &readings[0]
		}
		if len(readings) > 1 {
			r.Previous = &readings[1]
		}
		in.Readings[cfg.ID] = r
	}

	res := utility.Compute(in)
	for _, sk := range res.Skipped {
		s.logger.Debug("utility config not billed",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("config_id", sk.ConfigID.String()),
			zap.String("config", sk.Name),
			zap.String("reason", string(sk.Reason)),
		)
		telemetry.AddEvent(span, "utility_skipped", "config", sk.Name, "reason", string(sk.Reason))
	}
	telemetry.SetAttributes(span,
		"configs", len(configs),
		"line_items", len(res.LineItems),
		telemetry.SpanAttrSkipped, len(res.Skipped),
	)
	return res.LineItems, nil
}
