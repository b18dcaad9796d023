package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/telemetry"
)

// Skip reasons reported by generation runs
const (
	SkipReasonNoChain        = "tenant has no resolvable unit/property/landlord chain"
	SkipReasonAlreadyInvoice = "already invoiced for this period"
	SkipReasonConflict       = "invoice for this period was created concurrently"
)

// InvoiceGenerationService issues the monthly invoices and late-fee invoices
type InvoiceGenerationService struct {
	tenantRepo     tenancy.TenantRepository
	invoiceRepo    invoicing.InvoiceRepository
	allocationRepo invoicing.AllocationRepository
	utilities      *UtilityBillingService
	txScope        TransactionScope
	clock          shared.Clock
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BillingMetrics
}

// NewInvoiceGenerationService creates a new InvoiceGenerationService
func NewInvoiceGenerationService(
	tenantRepo tenancy.TenantRepository,
	invoiceRepo invoicing.InvoiceRepository,
	allocationRepo invoicing.AllocationRepository,
	utilities *UtilityBillingService,
	txScope TransactionScope,
	clock shared.Clock,
	logger *zap.Logger,
) *InvoiceGenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceGenerationService{
		tenantRepo:     tenantRepo,
		invoiceRepo:    invoiceRepo,
		allocationRepo: allocationRepo,
		utilities:      utilities,
		txScope:        txScope,
		clock:          clock,
		logger:         logger,
	}
}

// SetEventPublisher sets the event publisher for issued invoices
func (s *InvoiceGenerationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBillingMetrics sets the billing metrics collector
func (s *InvoiceGenerationService) SetBillingMetrics(m *telemetry.BillingMetrics) {
	s.metrics = m
}

// GenerateMonthlyInvoices issues one invoice per active tenant for the month.
//
// Tenants already invoiced for the period, tenants without a resolvable chain
// and tenants whose line items fail to build are counted as skipped; the batch
// carries on. All new invoices are persisted in one unit of work.
func (s *InvoiceGenerationService) GenerateMonthlyInvoices(ctx context.Context, year int, month time.Month) (*GenerationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_generation", "generate_monthly")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrYear, year, telemetry.SpanAttrMonth, int(month))

	if err := validateRequest(GenerateInvoicesRequest{Year: year, Month: month}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	periodStart, periodEnd := tenancy.BillingPeriod(year, month)
	result := &GenerationResult{Year: year, Month: month, Skips: make([]TenantSkip, 0)}

	tenants, err := s.tenantRepo.FindActive(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load active tenants: %w", err)
	}
	telemetry.SetAttribute(span, "active_tenants", len(tenants))

	counts := tenantCounts{}
	pending := make([]*invoicing.Invoice, 0, len(tenants))
	owners := make(map[uuid.UUID]*tenancy.Tenant, len(tenants))

	for i := range tenants {
		tenant := &tenants[i]
		if !tenant.IsActive() {
			continue
		}
		inv, reason, err := s.buildMonthlyInvoice(ctx, tenant, year, month, periodStart, periodEnd, counts, now)
		if err != nil {
			s.logger.Warn("skipping tenant after failure building invoice",
				zap.String("tenant_id", tenant.ID.String()),
				zap.Int("year", year),
				zap.Int("month", int(month)),
				zap.Error(err),
			)
			result.skip(tenant.ID, tenant.Name, err.Error())
			continue
		}
		if reason != "" {
			result.skip(tenant.ID, tenant.Name, reason)
			continue
		}
		pending = append(pending, inv)
		owners[inv.ID] = tenant
	}

	created, err := s.persist(ctx, pending, owners, result)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("invoice generation failed to commit",
			zap.Int("year", year),
			zap.Int("month", int(month)),
			zap.Int("pending", len(pending)),
			zap.Error(err),
		)
		return nil, err
	}
	result.Generated = len(created)
	result.Message = fmt.Sprintf("Generated %d invoice(s) for %s, skipped %d",
		result.Generated, periodStart.Format("January 2006"), result.Skipped)

	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, created)
	if s.metrics != nil {
		s.metrics.RecordGeneration(ctx, telemetry.GenerationKindMonthly, result.Generated, result.Skipped)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrGenerated, result.Generated, telemetry.SpanAttrSkipped, result.Skipped)
	s.logger.Info("monthly invoices generated",
		zap.Int("year", year),
		zap.Int("month", int(month)),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *InvoiceGenerationService) buildMonthlyInvoice(
	ctx context.Context,
	tenant *tenancy.Tenant,
	year int,
	month time.Month,
	periodStart, periodEnd time.Time,
	counts tenantCounts,
	now time.Time,
) (*invoicing.Invoice, string, error) {
	if !tenant.HasResolvableChain() {
		return nil, SkipReasonNoChain, nil
	}

	exists, err := s.invoiceRepo.ExistsForPeriod(ctx, tenant.ID, periodStart, periodEnd)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing invoice: %w", err)
	}
	if exists {
		return nil, SkipReasonAlreadyInvoice, nil
	}

	opening, err := s.openingBalance(ctx, tenant.ID, periodStart)
	if err != nil {
		return nil, "", err
	}

	utilityItems, err := s.utilities.computeLineItems(ctx, tenant, periodStart, periodEnd, counts)
	if err != nil {
		return nil, "", err
	}

	items := make([]invoicing.LineItem, 0, len(utilityItems)+1)
	items = append(items, invoicing.NewRentLineItem(tenant.MonthlyRent,
		fmt.Sprintf("Rent for %s", periodStart.Format("January 2006"))))
	items = append(items, utilityItems...)

	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		TenantID:       tenant.ID,
		UnitID:         *tenant.UnitID,
		PropertyID:     *tenant.PropertyID,
		LandlordID:     *tenant.LandlordID,
		InvoiceNumber:  invoicing.FormatInvoiceNumber(invoicing.InvoiceNumberPrefix, periodStart, tenant.ID),
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		DueDate:        tenant.DueDateFor(year, month),
		OpeningBalance: opening,
		LineItems:      items,
	}, now)
	if err != nil {
		return nil, "", err
	}
	return inv, "", nil
}

// openingBalance sums the live balances of the tenant's non-void invoices
// whose period ended before periodStart.
func (s *InvoiceGenerationService) openingBalance(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (decimal.Decimal, error) {
	prior, err := s.invoiceRepo.FindAll(ctx, invoicing.InvoiceFilter{
		TenantID:        &tenantID,
		PeriodEndBefore: &periodStart,
		ExcludeVoid:     true,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load prior invoices: %w", err)
	}
	return sumLiveBalances(ctx, s.allocationRepo, prior)
}

// persist inserts the invoices in one unit of work. Invoices that lose the
// idempotency race are counted as skipped.
func (s *InvoiceGenerationService) persist(
	ctx context.Context,
	pending []*invoicing.Invoice,
	owners map[uuid.UUID]*tenancy.Tenant,
	result *GenerationResult,
) ([]*invoicing.Invoice, error) {
	if len(pending) == 0 {
		return []*invoicing.Invoice{}, nil
	}

	var created []*invoicing.Invoice
	var conflicts []*invoicing.Invoice
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		created = make([]*invoicing.Invoice, 0, len(pending))
		conflicts = make([]*invoicing.Invoice, 0)
		for _, inv := range pending {
			inserted, err := repos.InvoiceRepo().CreateIfAbsent(ctx, inv)
			if err != nil {
				return fmt.Errorf("failed to create invoice %s: %w", inv.InvoiceNumber, err)
			}
			if inserted {
				created = append(created, inv)
			} else {
				conflicts = append(conflicts, inv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, inv := range conflicts {
		name := ""
		if t, ok := owners[inv.ID]; ok {
			name = t.Name
		}
		result.skip(inv.TenantID, name, SkipReasonConflict)
	}
	return created, nil
}

// ApplyLateFees charges late fees on the month's overdue invoices.
//
// The charge ledger of an invoice is immutable, so each fee is issued as its own
// late-fee invoice billing the single day after the due date. That period is
// the fee's idempotency key; re-running the batch never charges twice.
func (s *InvoiceGenerationService) ApplyLateFees(ctx context.Context, year int, month time.Month) (*GenerationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_generation", "apply_late_fees")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrYear, year, telemetry.SpanAttrMonth, int(month))

	if err := validateRequest(GenerateInvoicesRequest{Year: year, Month: month}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	periodStart, periodEnd := tenancy.BillingPeriod(year, month)
	result := &GenerationResult{Year: year, Month: month, Skips: make([]TenantSkip, 0)}

	invoices, err := s.invoiceRepo.FindAll(ctx, invoicing.InvoiceFilter{
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
		ExcludeVoid: true,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}

	sums, err := s.allocationRepo.SumByInvoices(ctx, invoiceIDs(invoices))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum allocations: %w", err)
	}

	pending := make([]*invoicing.Invoice, 0)
	owners := make(map[uuid.UUID]*tenancy.Tenant)
	for _, inv := range invoices {
		if inv.LineItems.HasType(invoicing.LineItemTypeLateFee) {
			continue
		}
		if !invoicing.CalculateBalance(inv, sums[inv.ID]).IsPositive() {
			continue
		}
		fee, tenant, reason, err := s.buildLateFeeInvoice(ctx, inv, periodStart, now)
		if err != nil {
			s.logger.Warn("skipping late fee after failure",
				zap.String("tenant_id", inv.TenantID.String()),
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.Error(err),
			)
			result.skip(inv.TenantID, "", err.Error())
			continue
		}
		if reason != "" {
			name := ""
			if tenant != nil {
				name = tenant.Name
			}
			result.skip(inv.TenantID, name, reason)
			continue
		}
		if fee == nil {
			continue
		}
		pending = append(pending, fee)
		owners[fee.ID] = tenant
	}

	created, err := s.persist(ctx, pending, owners, result)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.Generated = len(created)
	result.Message = fmt.Sprintf("Issued %d late-fee invoice(s) for %s, skipped %d",
		result.Generated, periodStart.Format("January 2006"), result.Skipped)

	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, created)
	if s.metrics != nil {
		s.metrics.RecordGeneration(ctx, telemetry.GenerationKindLateFee, result.Generated, result.Skipped)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrGenerated, result.Generated, telemetry.SpanAttrSkipped, result.Skipped)
	s.logger.Info("late fees applied",
		zap.Int("year", year),
		zap.Int("month", int(month)),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// buildLateFeeInvoice returns nil without a reason when no fee is due yet
func (s *InvoiceGenerationService) buildLateFeeInvoice(
	ctx context.Context,
	inv *invoicing.Invoice,
	periodStart time.Time,
	now time.Time,
) (*invoicing.Invoice, *tenancy.Tenant, string, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, inv.TenantID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, nil, "", shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Tenant %s not found", inv.TenantID))
	}

	fee := invoicing.CalculateLateFee(invoicing.PolicyFromTenant(tenant), inv.DueDate, now)
	if !fee.IsChargeable() {
		return nil, tenant, "", nil
	}

	feeDay := shared.CivilDate(inv.DueDate).AddDate(0, 0, 1)
	exists, err := s.invoiceRepo.ExistsForPeriod(ctx, tenant.ID, feeDay, feeDay)
	if err != nil {
		return nil, tenant, "", fmt.Errorf("failed to check existing late fee: %w", err)
	}
	if exists {
		return nil, tenant, SkipReasonAlreadyInvoice, nil
	}

	lateFee, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		TenantID:      tenant.ID,
		UnitID:        inv.UnitID,
		PropertyID:    inv.PropertyID,
		LandlordID:    inv.LandlordID,
		InvoiceNumber: invoicing.FormatInvoiceNumber(invoicing.LateFeeInvoiceNumberPrefix, periodStart, tenant.ID),
		PeriodStart:   feeDay,
		PeriodEnd:     feeDay,
		DueDate:       feeDay,
		LineItems: []invoicing.LineItem{
			invoicing.NewLateFeeLineItem(
				fmt.Sprintf("Late fee on %s (%s)", inv.InvoiceNumber, fee.Breakdown()), fee.Fee),
		},
	}, now)
	if err != nil {
		return nil, tenant, "", err
	}
	return lateFee, tenant, "", nil
}

// sumLiveBalances adds CalculateBalance over the invoices using their allocation facts
func sumLiveBalances(ctx context.Context, allocationRepo invoicing.AllocationRepository, invoices []*invoicing.Invoice) (decimal.Decimal, error) {
	live := make([]*invoicing.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.IsVoid() {
			live = append(live, inv)
		}
	}
	if len(live) == 0 {
		return decimal.Zero, nil
	}
	sums, err := allocationRepo.SumByInvoices(ctx, invoiceIDs(live))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum allocations: %w", err)
	}
	total := decimal.Zero
	for _, inv := range live {
		total = total.Add(invoicing.CalculateBalance(inv, sums[inv.ID]))
	}
	return total, nil
}

func invoiceIDs(invoices []*invoicing.Invoice) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}

func publishInvoiceEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, invoices []*invoicing.Invoice) {
	aggregates := make([]shared.AggregateRoot, 0, len(invoices))
	for _, inv := range invoices {
		aggregates = append(aggregates, inv)
	}
	publishEvents(ctx, publisher, logger, aggregates...)
}
