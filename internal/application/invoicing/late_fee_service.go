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

// LateFeeService computes late fees for display and surcharge decisions.
// Nothing is persisted here; ApplyLateFees on the generation service issues fees.
type LateFeeService struct {
	tenantRepo     tenancy.TenantRepository
	invoiceRepo    invoicing.InvoiceRepository
	paymentRepo    invoicing.PaymentRepository
	allocationRepo invoicing.AllocationRepository
	clock          shared.Clock
	logger         *zap.Logger
}

// NewLateFeeService creates a new LateFeeService
func NewLateFeeService(
	tenantRepo tenancy.TenantRepository,
	invoiceRepo invoicing.InvoiceRepository,
	paymentRepo invoicing.PaymentRepository,
	allocationRepo invoicing.AllocationRepository,
	clock shared.Clock,
	logger *zap.Logger,
) *LateFeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LateFeeService{
		tenantRepo:     tenantRepo,
		invoiceRepo:    invoiceRepo,
		paymentRepo:    paymentRepo,
		allocationRepo: allocationRepo,
		clock:          clock,
		logger:         logger,
	}
}

// CalculateForTenant computes the tenant's fee as of now for the given due
// date, defaulting to the due date of the current month.
func (s *LateFeeService) CalculateForTenant(ctx context.Context, tenantID uuid.UUID, dueDate *time.Time) (*invoicing.LateFeeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "late_fee", "calculate_tenant")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	tenant, err := s.findTenant(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	due := tenant.DueDateFor(now.Year(), now.Month())
	if dueDate != nil {
		due = *dueDate
	}

	result := invoicing.CalculateLateFee(invoicing.PolicyFromTenant(tenant), due, now)
	telemetry.SetAttributes(span, "fee", result.Fee.String(), "days_overdue", result.DaysOverdue)
	return result, nil
}

// CalculateForInvoice computes the fee on an invoice's due date. An invoice
// that is void or fully settled owes no fee.
func (s *LateFeeService) CalculateForInvoice(ctx context.Context, invoiceID uuid.UUID) (*invoicing.LateFeeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "late_fee", "calculate_invoice")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	if inv == nil {
		return nil, invoiceNotFound(invoiceID)
	}

	tenant, err := s.findTenant(ctx, inv.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := invoicing.CalculateLateFee(invoicing.PolicyFromTenant(tenant), inv.DueDate, s.clock.Now())
	if inv.IsVoid() {
		return waived(result), nil
	}
	sums, err := s.allocationRepo.SumByInvoices(ctx, []uuid.UUID{inv.ID})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum allocations: %w", err)
	}
	if !invoicing.CalculateBalance(inv, sums[inv.ID]).IsPositive() {
		return waived(result), nil
	}

	telemetry.SetAttributes(span, "fee", result.Fee.String(), "days_overdue", result.DaysOverdue)
	return result, nil
}

// CalculateForPayment computes the fee a payment incurs by comparing its
// receipt date with the due date of the month it was received in.
func (s *LateFeeService) CalculateForPayment(ctx context.Context, paymentID uuid.UUID) (*invoicing.LateFeeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "late_fee", "calculate_payment")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	if payment == nil {
		return nil, paymentNotFound(paymentID)
	}

	tenant, err := s.findTenant(ctx, payment.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// the receipt date is read on the billing calendar, not the driver's zone
	received := payment.ReceivedAt.In(s.clock.Now().Location())
	due := tenant.DueDateFor(received.Year(), received.Month())
	result := invoicing.CalculateLateFee(invoicing.PolicyFromTenant(tenant), due, received)
	telemetry.SetAttributes(span, "fee", result.Fee.String(), "days_overdue", result.DaysOverdue)
	return result, nil
}

func (s *LateFeeService) findTenant(ctx context.Context, tenantID uuid.UUID) (*tenancy.Tenant, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}
	if tenant == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Tenant %s not found", tenantID))
	}
	return tenant, nil
}

// waived zeroes the fee of a charge that is no longer owed, keeping the breakdown
func waived(r *invoicing.LateFeeResult) *invoicing.LateFeeResult {
	r.Fee = decimal.Zero
	r.Basis = invoicing.LateFeeBasisNone
	return r
}
