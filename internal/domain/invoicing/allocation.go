package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// Allocation is the immutable fact that a payment contributed an amount
// toward an invoice. It references both aggregates by ID and owns neither.
type Allocation struct {
	ID          uuid.UUID
	PaymentID   uuid.UUID
	InvoiceID   uuid.UUID
	TenantID    uuid.UUID
	Amount      decimal.Decimal
	AllocatedAt time.Time
	Remark      string
}

// NewAllocation creates an allocation fact for a positive amount
func NewAllocation(payment *Payment, invoice *Invoice, amount decimal.Decimal, remark string, now time.Time) (*Allocation, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Allocation amount must be positive")
	}
	return &Allocation{
		ID:          uuid.New(),
		PaymentID:   payment.ID,
		InvoiceID:   invoice.ID,
		TenantID:    payment.TenantID,
		Amount:      amount,
		AllocatedAt: now,
		Remark:      remark,
	}, nil
}

// Allocations is a set of allocation facts
type Allocations []Allocation

// Total sums every allocation
func (as Allocations) Total() decimal.Decimal {
	total := decimal.Zero
	for _, a := range as {
		total = total.Add(a.Amount)
	}
	return total
}

// TotalForInvoice sums the allocations targeting one invoice
func (as Allocations) TotalForInvoice(invoiceID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range as {
		if a.InvoiceID == invoiceID {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// TotalForPayment sums the allocations funded by one payment
func (as Allocations) TotalForPayment(paymentID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range as {
		if a.PaymentID == paymentID {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// ExcludingPayment returns the allocations not funded by the payment
func (as Allocations) ExcludingPayment(paymentID uuid.UUID) Allocations {
	out := make(Allocations, 0, len(as))
	for _, a := range as {
		if a.PaymentID != paymentID {
			out = append(out, a)
		}
	}
	return out
}

// InvoiceIDs returns the distinct invoices in first-seen order
func (as Allocations) InvoiceIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(as))
	ids := make([]uuid.UUID, 0, len(as))
	for _, a := range as {
		if _, ok := seen[a.InvoiceID]; ok {
			continue
		}
		seen[a.InvoiceID] = struct{}{}
		ids = append(ids, a.InvoiceID)
	}
	return ids
}

// TotalsByInvoice groups allocated amounts per invoice
func (as Allocations) TotalsByInvoice() map[uuid.UUID]decimal.Decimal {
	totals := make(map[uuid.UUID]decimal.Decimal)
	for _, a := range as {
		totals[a.InvoiceID] = totals[a.InvoiceID].Add(a.Amount)
	}
	return totals
}
