package invoicing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/telemetry"
)

// PaymentAllocationService applies payments to invoices and reverses them.
//
// Every operation takes the tenant's allocation lock, then runs one unit of
// work that locks the payment row, computes the outcome in the domain and
// persists the allocation facts, the payment and the touched invoices together.
// Events are published only after commit.
type PaymentAllocationService struct {
	paymentRepo    invoicing.PaymentRepository
	txScope        TransactionScope
	locker         TenantLocker
	clock          shared.Clock
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BillingMetrics
}

// NewPaymentAllocationService creates a new PaymentAllocationService.
// A nil locker falls back to the row lock taken inside the transaction.
func NewPaymentAllocationService(
	paymentRepo invoicing.PaymentRepository,
	txScope TransactionScope,
	locker TenantLocker,
	clock shared.Clock,
	logger *zap.Logger,
) *PaymentAllocationService {
	if locker == nil {
		locker = noopLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentAllocationService{
		paymentRepo: paymentRepo,
		txScope:     txScope,
		locker:      locker,
		clock:       clock,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *PaymentAllocationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBillingMetrics sets the billing metrics collector
func (s *PaymentAllocationService) SetBillingMetrics(m *telemetry.BillingMetrics) {
	s.metrics = m
}

// AllocatePayment applies a completed payment to req.InvoiceID, or FIFO across
// the tenant's outstanding invoices when no invoice is given.
func (s *PaymentAllocationService) AllocatePayment(ctx context.Context, req AllocatePaymentRequest) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_allocation", "allocate")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, req.PaymentID.String())

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.InvoiceID != nil {
		telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, req.InvoiceID.String())
	}

	var (
		payment *invoicing.Payment
		outcome *invoicing.AllocationOutcome
	)
	err := s.withTenantLock(ctx, req.PaymentID, func(repos TransactionalRepositories) error {
		var err error
		payment, err = lockPayment(ctx, repos, req.PaymentID)
		if err != nil {
			return err
		}
		outcome, err = s.allocate(ctx, repos, payment, req.InvoiceID, req)
		if err != nil {
			return err
		}
		return persistOutcome(ctx, repos, payment, outcome)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logFailure("allocation failed", req.PaymentID, err)
		return nil, err
	}

	return s.finish(ctx, payment, outcome, allocationMode(req.InvoiceID)), nil
}

// AllocateToOutstanding applies the payment FIFO across the tenant's outstanding invoices
func (s *PaymentAllocationService) AllocateToOutstanding(ctx context.Context, paymentID uuid.UUID) (*AllocationResult, error) {
	return s.AllocatePayment(ctx, AllocatePaymentRequest{PaymentID: paymentID})
}

// ReverseAllocations deletes every allocation of the payment and re-applies
// each affected invoice against the allocations it keeps.
func (s *PaymentAllocationService) ReverseAllocations(ctx context.Context, paymentID uuid.UUID, reason string) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_allocation", "reverse")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	req := ReverseAllocationsRequest{PaymentID: paymentID, Reason: strings.TrimSpace(reason)}
	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		payment *invoicing.Payment
		outcome *invoicing.AllocationOutcome
	)
	err := s.withTenantLock(ctx, paymentID, func(repos TransactionalRepositories) error {
		var err error
		payment, err = lockPayment(ctx, repos, paymentID)
		if err != nil {
			return err
		}

		paymentAllocs, err := repos.AllocationRepo().FindByPayment(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to load payment allocations: %w", err)
		}

		invoices := make(map[uuid.UUID]*invoicing.Invoice)
		invoiceAllocs := invoicing.Allocations{}
		if ids := paymentAllocs.InvoiceIDs(); len(ids) > 0 {
			found, err := repos.InvoiceRepo().FindByIDs(ctx, ids)
			if err != nil {
				return fmt.Errorf("failed to load invoices: %w", err)
			}
			for _, inv := range found {
				invoices[inv.ID] = inv
			}
			invoiceAllocs, err = repos.AllocationRepo().FindByInvoices(ctx, ids)
			if err != nil {
				return fmt.Errorf("failed to load invoice allocations: %w", err)
			}
		}

		outcome, err = invoicing.ReverseAllocations(payment, paymentAllocs, invoices, invoiceAllocs, req.Reason, s.clock.Now())
		if err != nil {
			return err
		}
		return persistOutcome(ctx, repos, payment, outcome)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logFailure("reversal failed", paymentID, err)
		return nil, err
	}

	return s.finish(ctx, payment, outcome, ""), nil
}

// ConfirmAndAllocate completes a pending payment and allocates it FIFO in the
// same unit of work. A failed allocation rolls back the confirmation.
func (s *PaymentAllocationService) ConfirmAndAllocate(ctx context.Context, paymentID uuid.UUID) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_allocation", "confirm_and_allocate")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	if paymentID == uuid.Nil {
		err := shared.NewDomainError(shared.CodeValidationFailed, "Payment ID is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		payment *invoicing.Payment
		outcome *invoicing.AllocationOutcome
	)
	err := s.withTenantLock(ctx, paymentID, func(repos TransactionalRepositories) error {
		var err error
		payment, err = lockPayment(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		if err := payment.Complete(s.clock.Now()); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		outcome, err = s.allocate(ctx, repos, payment, nil, AllocatePaymentRequest{PaymentID: paymentID})
		if err != nil {
			return err
		}
		return persistOutcome(ctx, repos, payment, outcome)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logFailure("confirmation failed", paymentID, err)
		return nil, err
	}

	result := s.finish(ctx, payment, outcome, telemetry.AllocationModeFIFO)
	result.Message = "Payment confirmed. " + result.Message
	return result, nil
}

// ConfirmByTransactionReference resolves a pending payment by its gateway
// transaction reference, then confirms and allocates it.
func (s *PaymentAllocationService) ConfirmByTransactionReference(ctx context.Context, reference string) (*AllocationResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Transaction reference is required")
	}
	payment, err := s.paymentRepo.FindByTransactionReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	if payment == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("No payment with transaction reference %q", reference))
	}
	return s.ConfirmAndAllocate(ctx, payment.ID)
}

// RejectPayment marks a pending payment as rejected
func (s *PaymentAllocationService) RejectPayment(ctx context.Context, req RejectPaymentRequest) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_allocation", "reject")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, req.PaymentID.String())

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var payment *invoicing.Payment
	err := s.withTenantLock(ctx, req.PaymentID, func(repos TransactionalRepositories) error {
		var err error
		payment, err = lockPayment(ctx, repos, req.PaymentID)
		if err != nil {
			return err
		}
		if err := payment.Reject(req.Reason, s.clock.Now()); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, payment)
	return &AllocationResult{
		PaymentID:         payment.ID,
		PaymentStatus:     payment.Status.String(),
		Allocations:       []AllocationSummary{},
		UnallocatedAmount: payment.UnallocatedAmount,
		NothingToDo:       true,
		Message:           fmt.Sprintf("Payment rejected: %s", req.Reason),
	}, nil
}

// withTenantLock resolves the payment's tenant, holds the tenant's allocation
// lock and runs fn in one transaction.
func (s *PaymentAllocationService) withTenantLock(ctx context.Context, paymentID uuid.UUID, fn func(repos TransactionalRepositories) error) error {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("failed to find payment: %w", err)
	}
	if payment == nil {
		return paymentNotFound(paymentID)
	}

	unlock, err := s.locker.Lock(ctx, AllocationLockKey(payment.TenantID))
	if err != nil {
		return err
	}
	defer unlock()

	return s.txScope.Execute(ctx, fn)
}

// allocate loads what the allocator needs and runs targeted or FIFO allocation
func (s *PaymentAllocationService) allocate(
	ctx context.Context,
	repos TransactionalRepositories,
	payment *invoicing.Payment,
	invoiceID *uuid.UUID,
	req AllocatePaymentRequest,
) (*invoicing.AllocationOutcome, error) {
	now := s.clock.Now()

	paymentAllocs, err := repos.AllocationRepo().FindByPayment(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment allocations: %w", err)
	}

	if invoiceID != nil {
		invoice, err := repos.InvoiceRepo().FindByID(ctx, *invoiceID)
		if err != nil {
			return nil, fmt.Errorf("failed to find invoice: %w", err)
		}
		if invoice == nil {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Invoice %s not found", *invoiceID))
		}
		invoiceAllocs, err := repos.AllocationRepo().FindByInvoice(ctx, invoice.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load invoice allocations: %w", err)
		}
		remark := req.Remark
		if remark == "" {
			remark = "Targeted allocation"
		}
		return invoicing.AllocateToInvoice(payment, paymentAllocs, invoice, invoiceAllocs, req.Amount, remark, now)
	}

	candidates, err := repos.InvoiceRepo().FindOutstandingForTenant(ctx, payment.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load outstanding invoices: %w", err)
	}
	existing := paymentAllocs
	if len(candidates) > 0 {
		invoiceAllocs, err := repos.AllocationRepo().FindByInvoices(ctx, invoiceIDs(candidates))
		if err != nil {
			return nil, fmt.Errorf("failed to load invoice allocations: %w", err)
		}
		existing = mergeAllocations(paymentAllocs, invoiceAllocs)
	}
	return invoicing.AllocateFIFO(payment, existing, candidates, now)
}

// persistOutcome writes the outcome of one allocation or reversal. A no-op
// outcome writes nothing.
func persistOutcome(ctx context.Context, repos TransactionalRepositories, payment *invoicing.Payment, outcome *invoicing.AllocationOutcome) error {
	if outcome.NothingToDo {
		return nil
	}

	if len(outcome.Removed) > 0 {
		deleted, err := repos.AllocationRepo().DeleteByPayment(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to delete allocations: %w", err)
		}
		if deleted != int64(len(outcome.Removed)) {
			return shared.NewDomainError(shared.CodeConcurrentModification,
				fmt.Sprintf("Expected to remove %d allocation(s) of payment %s but removed %d",
					len(outcome.Removed), payment.ID, deleted))
		}
	}
	if len(outcome.Created) > 0 {
		if err := repos.AllocationRepo().Create(ctx, outcome.Created...); err != nil {
			return fmt.Errorf("failed to create allocations: %w", err)
		}
	}
	for _, inv := range outcome.TouchedInvoices {
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice %s: %w", inv.InvoiceNumber, err)
		}
	}
	if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// finish publishes events, records metrics and builds the result after commit
func (s *PaymentAllocationService) finish(
	ctx context.Context,
	payment *invoicing.Payment,
	outcome *invoicing.AllocationOutcome,
	mode string,
) *AllocationResult {
	aggregates := make([]shared.AggregateRoot, 0, len(outcome.TouchedInvoices)+1)
	aggregates = append(aggregates, payment)
	for _, inv := range outcome.TouchedInvoices {
		aggregates = append(aggregates, inv)
	}
	publishEvents(ctx, s.eventPublisher, s.logger, aggregates...)

	if s.metrics != nil && !outcome.NothingToDo {
		if len(outcome.Removed) > 0 {
			s.metrics.RecordReversal(ctx, outcome.Reversed, len(outcome.Removed))
		} else {
			s.metrics.RecordAllocation(ctx, mode, outcome.Allocated, len(outcome.Created))
		}
	}

	result := toAllocationResult(payment, outcome)
	s.logger.Info("payment allocation updated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("tenant_id", payment.TenantID.String()),
		zap.String("allocated", result.AllocatedAmount.String()),
		zap.String("reversed", result.ReversedAmount.String()),
		zap.String("unallocated", result.UnallocatedAmount.String()),
		zap.Int("updated_invoices", result.UpdatedInvoices),
		zap.Bool("nothing_to_do", result.NothingToDo),
	)
	return result
}

func (s *PaymentAllocationService) logFailure(msg string, paymentID uuid.UUID, err error) {
	if shared.IsNotFound(err) || shared.IsInvalidState(err) || shared.IsValidationFailed(err) {
		s.logger.Warn(msg, zap.String("payment_id", paymentID.String()), zap.Error(err))
		return
	}
	s.logger.Error(msg, zap.String("payment_id", paymentID.String()), zap.Error(err))
}

func lockPayment(ctx context.Context, repos TransactionalRepositories, paymentID uuid.UUID) (*invoicing.Payment, error) {
	payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	if payment == nil {
		return nil, paymentNotFound(paymentID)
	}
	return payment, nil
}

func paymentNotFound(id uuid.UUID) error {
	return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Payment %s not found", id))
}

func allocationMode(invoiceID *uuid.UUID) string {
	if invoiceID != nil {
		return telemetry.AllocationModeTargeted
	}
	return telemetry.AllocationModeFIFO
}

// mergeAllocations unions allocation sets by allocation ID
func mergeAllocations(sets ...invoicing.Allocations) invoicing.Allocations {
	seen := make(map[uuid.UUID]struct{})
	merged := make(invoicing.Allocations, 0)
	for _, set := range sets {
		for _, a := range set {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			merged = append(merged, a)
		}
	}
	return merged
}
