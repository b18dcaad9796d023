package invoicing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared/valueobject"
)

// AllocationOutcome is the in-memory result of one allocation or reversal.
// The caller persists Created/Removed, the Payment and TouchedInvoices as one unit.
type AllocationOutcome struct {
	Created         Allocations
	Removed         Allocations
	TouchedInvoices []*Invoice
	ChangedInvoices int
	Allocated       decimal.Decimal
	Reversed        decimal.Decimal
	Unallocated     decimal.Decimal
	NothingToDo     bool
	Message         string
}

func nothingToDo(payment *Payment, message string) *AllocationOutcome {
	return &AllocationOutcome{
		Created:     Allocations{},
		Removed:     Allocations{},
		Allocated:   decimal.Zero,
		Reversed:    decimal.Zero,
		Unallocated: payment.UnallocatedAmount,
		NothingToDo: true,
		Message:     message,
	}
}

func ensureAllocatable(payment *Payment) error {
	if !payment.Status.CanAllocate() {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Payment %s is %s; only COMPLETED payments can be allocated", payment.ID, payment.Status))
	}
	return nil
}

// AllocateToInvoice applies a payment to a single invoice.
//
// paymentAllocs are the payment's existing allocations and invoiceAllocs the
// invoice's. The amount defaults to the payment's remaining funds and is capped
// to both the remaining funds and the invoice's outstanding balance.
func AllocateToInvoice(
	payment *Payment,
	paymentAllocs Allocations,
	invoice *Invoice,
	invoiceAllocs Allocations,
	requested *decimal.Decimal,
	remark string,
	now time.Time,
) (*AllocationOutcome, error) {
	if err := ensureAllocatable(payment); err != nil {
		return nil, err
	}
	if invoice.IsVoid() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Invoice %s is void", invoice.InvoiceNumber))
	}
	if !invoice.BelongsTo(payment.TenantID) {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Invoice %s does not belong to the paying tenant", invoice.InvoiceNumber))
	}
	if requested != nil && !requested.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Requested allocation amount must be positive")
	}

	paymentAllocated := paymentAllocs.TotalForPayment(payment.ID)
	remaining := payment.Remaining(paymentAllocated)
	if !remaining.IsPositive() {
		payment.RefreshUnallocated(paymentAllocated, now)
		return nothingToDo(payment, "Nothing to allocate: payment is fully allocated"), nil
	}

	invoiceAllocated := invoiceAllocs.TotalForInvoice(invoice.ID)
	outstanding := CalculateBalance(invoice, invoiceAllocated)
	if !outstanding.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed,
			fmt.Sprintf("Invoice %s is already fully settled", invoice.InvoiceNumber))
	}

	amount := remaining
	if requested != nil {
		amount = decimal.Min(*requested, remaining)
	}
	amount = decimal.Min(amount, outstanding)

	alloc, err := NewAllocation(payment, invoice, amount, remark, now)
	if err != nil {
		return nil, err
	}

	changed := 0
	if Apply(invoice, invoiceAllocated.Add(amount), now) {
		changed++
	}
	payment.RefreshUnallocated(paymentAllocated.Add(amount), now)

	created := Allocations{*alloc}
	payment.AddDomainEvent(NewPaymentAllocatedEvent(payment, created, now))

	return &AllocationOutcome{
		Created:         created,
		Removed:         Allocations{},
		TouchedInvoices: []*Invoice{invoice},
		ChangedInvoices: changed,
		Allocated:       amount,
		Unallocated:     payment.UnallocatedAmount,
		Message: fmt.Sprintf("Allocated %s to invoice %s; %s remains unallocated",
			valueobject.NewMoney(amount), invoice.InvoiceNumber, payment.GetUnallocatedAmountMoney()),
	}, nil
}

// AllocateFIFO walks the tenant's outstanding invoices oldest first, allocating
// min(remaining, outstanding) to each until the payment is exhausted.
//
// existing holds every allocation of the payment and of the candidate invoices.
// Allocated totals created during the walk are tracked in memory so an invoice
// is never counted twice within one call. Leftover funds stay on the payment as credit.
func AllocateFIFO(payment *Payment, existing Allocations, candidates []*Invoice, now time.Time) (*AllocationOutcome, error) {
	if err := ensureAllocatable(payment); err != nil {
		return nil, err
	}

	paymentAllocated := existing.TotalForPayment(payment.ID)
	remaining := payment.Remaining(paymentAllocated)
	if !remaining.IsPositive() {
		payment.RefreshUnallocated(paymentAllocated, now)
		return nothingToDo(payment, "Nothing to allocate: payment is fully allocated"), nil
	}

	allocated := existing.TotalsByInvoice()
	created := make(Allocations, 0)
	touched := make([]*Invoice, 0)
	changed := 0
	total := decimal.Zero

	for _, inv := range OrderForFIFO(candidates) {
		if !remaining.IsPositive() {
			break
		}
		if inv.IsVoid() || !inv.BelongsTo(payment.TenantID) {
			continue
		}
		outstanding := CalculateBalance(inv, allocated[inv.ID])
		if !outstanding.IsPositive() {
			continue
		}

		amount := decimal.Min(remaining, outstanding)
		alloc, err := NewAllocation(payment, inv, amount, "FIFO allocation", now)
		if err != nil {
			return nil, err
		}
		created = append(created, *alloc)
		allocated[inv.ID] = allocated[inv.ID].Add(amount)
		if Apply(inv, allocated[inv.ID], now) {
			changed++
		}
		touched = append(touched, inv)
		remaining = remaining.Sub(amount)
		total = total.Add(amount)
	}

	payment.RefreshUnallocated(paymentAllocated.Add(total), now)

	if len(created) == 0 {
		return nothingToDo(payment, fmt.Sprintf("No outstanding invoices; %s stays unallocated", payment.GetUnallocatedAmountMoney())), nil
	}

	payment.AddDomainEvent(NewPaymentAllocatedEvent(payment, created, now))

	return &AllocationOutcome{
		Created:         created,
		Removed:         Allocations{},
		TouchedInvoices: touched,
		ChangedInvoices: changed,
		Allocated:       total,
		Unallocated:     payment.UnallocatedAmount,
		Message: fmt.Sprintf("Allocated %s across %d invoice(s); %s remains unallocated",
			valueobject.NewMoney(total), len(created), payment.GetUnallocatedAmountMoney()),
	}, nil
}

// ReverseAllocations removes every allocation of the payment and re-applies
// each affected invoice against the allocations it keeps from other payments.
//
// invoiceAllocs must contain all allocations of the affected invoices.
func ReverseAllocations(
	payment *Payment,
	paymentAllocs Allocations,
	invoices map[uuid.UUID]*Invoice,
	invoiceAllocs Allocations,
	reason string,
	now time.Time,
) (*AllocationOutcome, error) {
	if len(paymentAllocs) == 0 {
		return nothingToDo(payment, "Nothing to reverse: payment has no allocations"), nil
	}

	kept := invoiceAllocs.ExcludingPayment(payment.ID)
	touched := make([]*Invoice, 0, len(invoices))
	changed := 0
	for _, id := range paymentAllocs.InvoiceIDs() {
		inv, ok := invoices[id]
		if !ok || inv == nil {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Invoice %s referenced by an allocation was not found", id))
		}
		if Apply(inv, kept.TotalForInvoice(id), now) {
			changed++
		}
		touched = append(touched, inv)
	}

	reversed := paymentAllocs.Total()
	payment.RefreshUnallocated(decimal.Zero, now)
	payment.AddDomainEvent(NewAllocationsReversedEvent(payment, paymentAllocs, reason, now))

	removed := make(Allocations, len(paymentAllocs))
	copy(removed, paymentAllocs)

	message := fmt.Sprintf("Reversed %d allocation(s) totalling %s", len(removed), valueobject.NewMoney(reversed))
	if reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}

	return &AllocationOutcome{
		Created:         Allocations{},
		Removed:         removed,
		TouchedInvoices: touched,
		ChangedInvoices: changed,
		Allocated:       decimal.Zero,
		Reversed:        reversed,
		Unallocated:     payment.UnallocatedAmount,
		Message:         message,
	}, nil
}
