package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
)

// TenantSkip explains why a tenant got no invoice in a generation run
type TenantSkip struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	Reason     string    `json:"reason"`
}

// GenerationResult summarises one batch generation run
type GenerationResult struct {
	Year      int          `json:"year"`
	Month     time.Month   `json:"month"`
	Generated int          `json:"generated"`
	Skipped   int          `json:"skipped"`
	Skips     []TenantSkip `json:"skips,omitempty"`
	Message   string       `json:"message"`
}

func (r *GenerationResult) skip(tenantID uuid.UUID, name, reason string) {
	r.Skipped++
	r.Skips = append(r.Skips, TenantSkip{TenantID: tenantID, TenantName: name, Reason: reason})
}

// AllocationSummary describes one allocation fact created or removed by an operation
type AllocationSummary struct {
	AllocationID   uuid.UUID       `json:"allocation_id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Amount         decimal.Decimal `json:"amount"`
	InvoiceBalance decimal.Decimal `json:"invoice_balance"`
	InvoiceStatus  string          `json:"invoice_status"`
}

// AllocationResult is returned by every allocation, reversal and confirmation.
// NothingToDo marks a successful no-op.
type AllocationResult struct {
	PaymentID         uuid.UUID           `json:"payment_id"`
	PaymentStatus     string              `json:"payment_status"`
	Allocations       []AllocationSummary `json:"allocations"`
	AllocatedAmount   decimal.Decimal     `json:"allocated_amount"`
	ReversedAmount    decimal.Decimal     `json:"reversed_amount"`
	UnallocatedAmount decimal.Decimal     `json:"unallocated_amount"`
	UpdatedInvoices   int                 `json:"updated_invoices"`
	NothingToDo       bool                `json:"nothing_to_do"`
	Message           string              `json:"message"`
}

func toAllocationResult(payment *invoicing.Payment, outcome *invoicing.AllocationOutcome) *AllocationResult {
	invoices := make(map[uuid.UUID]*invoicing.Invoice, len(outcome.TouchedInvoices))
	for _, inv := range outcome.TouchedInvoices {
		invoices[inv.ID] = inv
	}

	facts := outcome.Created
	if len(outcome.Removed) > 0 {
		facts = outcome.Removed
	}

	summaries := make([]AllocationSummary, 0, len(facts))
	for _, a := range facts {
		summary := AllocationSummary{
			AllocationID: a.ID,
			InvoiceID:    a.InvoiceID,
			Amount:       a.Amount,
		}
		if inv, ok := invoices[a.InvoiceID]; ok {
			summary.InvoiceNumber = inv.InvoiceNumber
			summary.InvoiceBalance = inv.Balance
			summary.InvoiceStatus = inv.Status.String()
		}
		summaries = append(summaries, summary)
	}

	return &AllocationResult{
		PaymentID:         payment.ID,
		PaymentStatus:     payment.Status.String(),
		Allocations:       summaries,
		AllocatedAmount:   outcome.Allocated,
		ReversedAmount:    outcome.Reversed,
		UnallocatedAmount: outcome.Unallocated,
		UpdatedInvoices:   outcome.ChangedInvoices,
		NothingToDo:       outcome.NothingToDo,
		Message:           outcome.Message,
	}
}
