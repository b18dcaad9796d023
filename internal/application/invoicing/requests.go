package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateInvoicesRequest identifies the billing month to generate
type GenerateInvoicesRequest struct {
	Year  int        `json:"year" validate:"gte=2000,lte=2100"`
	Month time.Month `json:"month" validate:"gte=1,lte=12"`
}

// AllocatePaymentRequest applies a payment to one invoice, or FIFO across the
// tenant's outstanding invoices when InvoiceID is nil.
type AllocatePaymentRequest struct {
	PaymentID uuid.UUID        `json:"payment_id" validate:"required"`
	InvoiceID *uuid.UUID       `json:"invoice_id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"` // defaults to the payment's unallocated funds
	Remark    string           `json:"remark,omitempty" validate:"max=500"`
}

// ReverseAllocationsRequest removes every allocation of a payment
type ReverseAllocationsRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Reason    string    `json:"reason,omitempty" validate:"max=500"`
}

// RejectPaymentRequest rejects a pending payment
type RejectPaymentRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
}

// VoidInvoiceRequest voids an invoice that carries no allocations
type VoidInvoiceRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
}
