package invoicing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/telemetry"
)

// DefaultRecalculationBatchSize is the page size used by RecalculateAll
const DefaultRecalculationBatchSize = 500

// BalanceRecalculationService reconciles the cached Balance/Status of invoices
// and UnallocatedAmount of payments with the allocation facts. It never creates
// or removes allocations, so running it repeatedly is safe.
type BalanceRecalculationService struct {
	tenantRepo     tenancy.TenantRepository
	invoiceRepo    invoicing.InvoiceRepository
	allocationRepo invoicing.AllocationRepository
	txScope        TransactionScope
	locker         TenantLocker
	clock          shared.Clock
	logger         *zap.Logger
	batchSize      int
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BillingMetrics
}

// NewBalanceRecalculationService creates a new BalanceRecalculationService
func NewBalanceRecalculationService(
	tenantRepo tenancy.TenantRepository,
	invoiceRepo invoicing.InvoiceRepository,
	allocationRepo invoicing.AllocationRepository,
	txScope TransactionScope,
	locker TenantLocker,
	clock shared.Clock,
	logger *zap.Logger,
) *BalanceRecalculationService {
	if locker == nil {
		locker = noopLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceRecalculationService{
		tenantRepo:     tenantRepo,
		invoiceRepo:    invoiceRepo,
		allocationRepo: allocationRepo,
		txScope:        txScope,
		locker:         locker,
		clock:          clock,
		logger:         logger,
		batchSize:      DefaultRecalculationBatchSize,
	}
}

// SetBatchSize sets the page size of RecalculateAll
func (s *BalanceRecalculationService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SetEventPublisher sets the event publisher for status changes
func (s *BalanceRecalculationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBillingMetrics sets the billing metrics collector
func (s *BalanceRecalculationService) SetBillingMetrics(m *telemetry.BillingMetrics) {
	s.metrics = m
}

// RecalculateAll re-applies every non-void invoice page by page and returns
// how many stored balances or statuses changed.
func (s *BalanceRecalculationService) RecalculateAll(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance_recalculation", "recalculate_all")
	defer span.End()

	total := 0
	for page := 1; ; page++ {
		filter := invoicing.InvoiceFilter{
			Filter: shared.Filter{
				Page:     page,
				PageSize: s.batchSize,
				OrderBy:  "id",
				OrderDir: "asc",
			},
			ExcludeVoid: true,
		}

		var (
			fetched int
			changed []*invoicing.Invoice
		)
		err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			invoices, err := repos.InvoiceRepo().FindAll(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to load invoices: %w", err)
			}
			fetched = len(invoices)
			changed, err = s.reapply(ctx, repos, invoices)
			return err
		})
		if err != nil {
			telemetry.RecordError(span, err)
			s.logger.Error("recalculation failed", zap.Int("page", page), zap.Error(err))
			return total, err
		}
		publishInvoiceEvents(ctx, s.eventPublisher, s.logger, changed)
		total += len(changed)
		if fetched < s.batchSize {
			break
		}
	}

	s.recorded(ctx, "all", total)
	telemetry.SetAttribute(span, "updated", total)
	s.logger.Info("recalculated all invoice balances", zap.Int("updated", total))
	return total, nil
}

// RecalculateForTenant re-applies the tenant's non-void invoices
func (s *BalanceRecalculationService) RecalculateForTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance_recalculation", "recalculate_tenant")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	var changed []*invoicing.Invoice
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoices, err := repos.InvoiceRepo().FindAll(ctx, invoicing.InvoiceFilter{
			TenantID:    &tenantID,
			ExcludeVoid: true,
		})
		if err != nil {
			return fmt.Errorf("failed to load invoices: %w", err)
		}
		changed, err = s.reapply(ctx, repos, invoices)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, changed)
	s.recorded(ctx, "tenant", len(changed))
	telemetry.SetAttribute(span, "updated", len(changed))
	s.logger.Info("recalculated tenant invoice balances",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("updated", len(changed)),
	)
	return len(changed), nil
}

// RecalculateForInvoice re-applies a single invoice. A void invoice is left untouched.
func (s *BalanceRecalculationService) RecalculateForInvoice(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance_recalculation", "recalculate_invoice")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	var changed []*invoicing.Invoice
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByID(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to find invoice: %w", err)
		}
		if inv == nil {
			return invoiceNotFound(invoiceID)
		}
		changed, err = s.reapply(ctx, repos, []*invoicing.Invoice{inv})
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, changed)
	s.recorded(ctx, "invoice", len(changed))
	return len(changed), nil
}

// RecalculatePayment re-derives the payment's UnallocatedAmount from its
// allocations and reports whether the stored value changed.
func (s *BalanceRecalculationService) RecalculatePayment(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance_recalculation", "recalculate_payment")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	changed := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := lockPayment(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		allocs, err := repos.AllocationRepo().FindByPayment(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to load payment allocations: %w", err)
		}
		changed = payment.RefreshUnallocated(allocs.TotalForPayment(payment.ID), s.clock.Now())
		if !changed {
			return nil
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	telemetry.SetAttribute(span, "changed", changed)
	return changed, nil
}

// GetOutstandingBalanceForTenant sums the live balance of the tenant's
// non-void invoices. Nothing is persisted.
func (s *BalanceRecalculationService) GetOutstandingBalanceForTenant(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance_recalculation", "outstanding_balance")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return decimal.Zero, fmt.Errorf("failed to find tenant: %w", err)
	}
	if tenant == nil {
		err := shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Tenant %s not found", tenantID))
		telemetry.RecordError(span, err)
		return decimal.Zero, err
	}

	invoices, err := s.invoiceRepo.FindAll(ctx, invoicing.InvoiceFilter{
		TenantID:    &tenantID,
		ExcludeVoid: true,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return decimal.Zero, fmt.Errorf("failed to load invoices: %w", err)
	}

	balance, err := sumLiveBalances(ctx, s.allocationRepo, invoices)
	if err != nil {
		telemetry.RecordError(span, err)
		return decimal.Zero, err
	}
	telemetry.SetAttribute(span, "balance", balance.String())
	return balance, nil
}

// VoidInvoice administratively voids an invoice. Invoices that still carry
// allocations must have them reversed first.
func (s *BalanceRecalculationService) VoidInvoice(ctx context.Context, req VoidInvoiceRequest) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance_recalculation", "void_invoice")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, req.InvoiceID.String())

	req.Reason = strings.TrimSpace(req.Reason)
	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	inv, err := s.invoiceRepo.FindByID(ctx, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	if inv == nil {
		return nil, invoiceNotFound(req.InvoiceID)
	}

	unlock, err := s.locker.Lock(ctx, AllocationLockKey(inv.TenantID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err = repos.InvoiceRepo().FindByID(ctx, req.InvoiceID)
		if err != nil {
			return fmt.Errorf("failed to find invoice: %w", err)
		}
		if inv == nil {
			return invoiceNotFound(req.InvoiceID)
		}
		allocs, err := repos.AllocationRepo().FindByInvoice(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("failed to load invoice allocations: %w", err)
		}
		if err := inv.Void(req.Reason, allocs.TotalForInvoice(inv.ID), s.clock.Now()); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, inv)
	s.logger.Info("invoice voided",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("reason", req.Reason),
	)
	return inv, nil
}

// reapply runs Apply over the invoices and saves only those that changed
func (s *BalanceRecalculationService) reapply(ctx context.Context, repos TransactionalRepositories, invoices []*invoicing.Invoice) ([]*invoicing.Invoice, error) {
	live := make([]*invoicing.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.IsVoid() {
			live = append(live, inv)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}

	sums, err := repos.AllocationRepo().SumByInvoices(ctx, invoiceIDs(live))
	if err != nil {
		return nil, fmt.Errorf("failed to sum allocations: %w", err)
	}

	now := s.clock.Now()
	changed := make([]*invoicing.Invoice, 0)
	for _, inv := range live {
		if !invoicing.Apply(inv, sums[inv.ID], now) {
			continue
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return nil, fmt.Errorf("failed to save invoice %s: %w", inv.InvoiceNumber, err)
		}
		changed = append(changed, inv)
	}
	return changed, nil
}

func (s *BalanceRecalculationService) recorded(ctx context.Context, scope string, changed int) {
	if s.metrics != nil {
		s.metrics.RecordRecalculation(ctx, scope, changed)
	}
}

func invoiceNotFound(id uuid.UUID) error {
	return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Invoice %s not found", id))
}
