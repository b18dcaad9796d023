package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared/valueobject"
)

// PaymentStatus represents the collection status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"   // Awaiting confirmation from the collection workflow
	PaymentStatusCompleted PaymentStatus = "COMPLETED" // Funds received, may be allocated
	PaymentStatusRejected  PaymentStatus = "REJECTED"  // Collection failed or was declined
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// CanAllocate returns true if funds of a payment in this status may be allocated
func (s PaymentStatus) CanAllocate() bool {
	return s == PaymentStatusCompleted
}

// PaymentMethod is how the tenant paid
type PaymentMethod string

const (
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodMobileMoney, PaymentMethodBankTransfer, PaymentMethodCash, PaymentMethodCard:
		return true
	}
	return false
}

// Payment is a funds receipt from a tenant.
// UnallocatedAmount is a cache of Amount minus the payment's allocations.
type Payment struct {
	shared.TenantAggregateRoot
	Amount               decimal.Decimal
	UnallocatedAmount    decimal.Decimal
	Status               PaymentStatus
	Method               PaymentMethod
	TransactionReference string
	ReceivedAt           time.Time
	CompletedAt          *time.Time
	RejectedAt           *time.Time
	RejectionReason      string
	Remark               string
}

// NewPayment records a pending payment
func NewPayment(tenantID uuid.UUID, amount decimal.Decimal, method PaymentMethod, reference string, receivedAt, now time.Time) (*Payment, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Tenant ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, fmt.Sprintf("Payment method %q is not valid", method))
	}
	if len(reference) > 100 {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Transaction reference cannot exceed 100 characters")
	}
	if receivedAt.IsZero() {
		receivedAt = now
	}

	return &Payment{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID, now),
		Amount:               amount,
		UnallocatedAmount:    amount,
		Status:               PaymentStatusPending,
		Method:               method,
		TransactionReference: strings.TrimSpace(reference),
		ReceivedAt:           receivedAt,
	}, nil
}

// Complete confirms a pending payment so its funds can be allocated
func (p *Payment) Complete(now time.Time) error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot complete payment in %s status", p.Status))
	}
	p.Status = PaymentStatusCompleted
	p.CompletedAt = &now
	p.UpdatedAt = now

	p.AddDomainEvent(NewPaymentCompletedEvent(p, now))
	return nil
}

// Reject marks a pending payment as failed
func (p *Payment) Reject(reason string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot reject payment in %s status", p.Status))
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError(shared.CodeValidationFailed, "Rejection reason is required")
	}
	p.Status = PaymentStatusRejected
	p.RejectedAt = &now
	p.RejectionReason = reason
	p.UpdatedAt = now

	p.AddDomainEvent(NewPaymentRejectedEvent(p, now))
	return nil
}

// Remaining is the raw amount not yet allocated given the payment's allocated total
func (p *Payment) Remaining(allocatedTotal decimal.Decimal) decimal.Decimal {
	return p.Amount.Sub(allocatedTotal)
}

// RefreshUnallocated sets UnallocatedAmount = max(0, Amount - allocatedTotal)
// and reports whether it changed.
func (p *Payment) RefreshUnallocated(allocatedTotal decimal.Decimal, now time.Time) bool {
	unallocated := decimal.Max(decimal.Zero, p.Remaining(allocatedTotal))
	if p.UnallocatedAmount.Equal(unallocated) {
		return false
	}
	p.UnallocatedAmount = unallocated
	p.UpdatedAt = now
	return true
}

// GetAmountMoney returns the amount as Money
func (p *Payment) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoney(p.Amount)
}

// GetUnallocatedAmountMoney returns the unallocated amount as Money
func (p *Payment) GetUnallocatedAmountMoney() valueobject.Money {
	return valueobject.NewMoney(p.UnallocatedAmount)
}
