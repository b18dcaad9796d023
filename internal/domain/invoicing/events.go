package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// Event types
const (
	EventTypeInvoiceIssued        = "InvoiceIssued"
	EventTypeInvoiceStatusChanged = "InvoiceStatusChanged"
	EventTypeInvoiceVoided        = "InvoiceVoided"
	EventTypePaymentCompleted     = "PaymentCompleted"
	EventTypePaymentRejected      = "PaymentRejected"
	EventTypePaymentAllocated     = "PaymentAllocated"
	EventTypeAllocationsReversed  = "AllocationsReversed"
)

const (
	aggregateTypeInvoice = "Invoice"
	aggregateTypePayment = "Payment"
)

// InvoiceIssuedEvent is raised when the generator issues an invoice
type InvoiceIssuedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	DueDate        time.Time       `json:"due_date"`
	Amount         decimal.Decimal `json:"amount"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Status         InvoiceStatus   `json:"status"`
}

// NewInvoiceIssuedEvent creates a new InvoiceIssuedEvent
func NewInvoiceIssuedEvent(inv *Invoice, now time.Time) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceIssued, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PeriodStart:     inv.PeriodStart,
		PeriodEnd:       inv.PeriodEnd,
		DueDate:         inv.DueDate,
		Amount:          inv.Amount,
		OpeningBalance:  inv.OpeningBalance,
		Status:          inv.Status,
	}
}

// InvoiceStatusChangedEvent is raised when Apply moves an invoice to a new status
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	PreviousStatus InvoiceStatus   `json:"previous_status"`
	Status         InvoiceStatus   `json:"status"`
	Balance        decimal.Decimal `json:"balance"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, previous InvoiceStatus, now time.Time) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PreviousStatus:  previous,
		Status:          inv.Status,
		Balance:         inv.Balance,
	}
}

// InvoiceVoidedEvent is raised when an invoice is voided
type InvoiceVoidedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID     `json:"invoice_id"`
	InvoiceNumber  string        `json:"invoice_number"`
	PreviousStatus InvoiceStatus `json:"previous_status"`
	Reason         string        `json:"reason"`
}

// NewInvoiceVoidedEvent creates a new InvoiceVoidedEvent
func NewInvoiceVoidedEvent(inv *Invoice, previous InvoiceStatus, now time.Time) *InvoiceVoidedEvent {
	return &InvoiceVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceVoided, aggregateTypeInvoice, inv.ID, inv.TenantID, now),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PreviousStatus:  previous,
		Reason:          inv.VoidReason,
	}
}

// PaymentCompletedEvent is raised when a pending payment is confirmed
type PaymentCompletedEvent struct {
	shared.BaseDomainEvent
	PaymentID            uuid.UUID       `json:"payment_id"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
}

// NewPaymentCompletedEvent creates a new PaymentCompletedEvent
func NewPaymentCompletedEvent(p *Payment, now time.Time) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypePaymentCompleted, aggregateTypePayment, p.ID, p.TenantID, now),
		PaymentID:            p.ID,
		Amount:               p.Amount,
		TransactionReference: p.TransactionReference,
	}
}

// PaymentRejectedEvent is raised when a pending payment is rejected
type PaymentRejectedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID `json:"payment_id"`
	Reason    string    `json:"reason"`
}

// NewPaymentRejectedEvent creates a new PaymentRejectedEvent
func NewPaymentRejectedEvent(p *Payment, now time.Time) *PaymentRejectedEvent {
	return &PaymentRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRejected, aggregateTypePayment, p.ID, p.TenantID, now),
		PaymentID:       p.ID,
		Reason:          p.RejectionReason,
	}
}

// AllocationLine is an allocation as carried on events
type AllocationLine struct {
	AllocationID uuid.UUID       `json:"allocation_id"`
	InvoiceID    uuid.UUID       `json:"invoice_id"`
	Amount       decimal.Decimal `json:"amount"`
}

func toLines(allocs Allocations) []AllocationLine {
	lines := make([]AllocationLine, len(allocs))
	for i, a := range allocs {
		lines[i] = AllocationLine{AllocationID: a.ID, InvoiceID: a.InvoiceID, Amount: a.Amount}
	}
	return lines
}

// PaymentAllocatedEvent is raised when a payment's funds are applied to invoices
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	PaymentID         uuid.UUID        `json:"payment_id"`
	Allocations       []AllocationLine `json:"allocations"`
	TotalAllocated    decimal.Decimal  `json:"total_allocated"`
	UnallocatedAmount decimal.Decimal  `json:"unallocated_amount"`
}

// NewPaymentAllocatedEvent creates a new PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, created Allocations, now time.Time) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePaymentAllocated, aggregateTypePayment, p.ID, p.TenantID, now),
		PaymentID:         p.ID,
		Allocations:       toLines(created),
		TotalAllocated:    created.Total(),
		UnallocatedAmount: p.UnallocatedAmount,
	}
}

// AllocationsReversedEvent is raised when all of a payment's allocations are removed
type AllocationsReversedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID        `json:"payment_id"`
	Allocations   []AllocationLine `json:"allocations"`
	TotalReversed decimal.Decimal  `json:"total_reversed"`
	Reason        string           `json:"reason,omitempty"`
}

// NewAllocationsReversedEvent creates a new AllocationsReversedEvent
func NewAllocationsReversedEvent(p *Payment, removed Allocations, reason string, now time.Time) *AllocationsReversedEvent {
	return &AllocationsReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationsReversed, aggregateTypePayment, p.ID, p.TenantID, now),
		PaymentID:       p.ID,
		Allocations:     toLines(removed),
		TotalReversed:   removed.Total(),
		Reason:          reason,
	}
}
