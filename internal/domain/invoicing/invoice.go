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

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusIssued        InvoiceStatus = "ISSUED"         // Unpaid, not yet due
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // 0 < balance < total obligation
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // balance <= 0
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // Unpaid and past due date
	InvoiceStatusVoid          InvoiceStatus = "VOID"           // Administratively voided, sticky
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusIssued, InvoiceStatusPartiallyPaid, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsVoid returns true for the sticky VOID status
func (s InvoiceStatus) IsVoid() bool {
	return s == InvoiceStatusVoid
}

// ParseInvoiceStatus parses a status name case-insensitively
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", shared.NewDomainError(shared.CodeValidationFailed, fmt.Sprintf("Unknown invoice status %q", s))
	}
	return status, nil
}

// Invoice is one billing obligation of a tenant for one period.
// Amount and LineItems are fixed at creation. Balance and Status are caches
// over the allocation facts and are only written by Apply.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber  string
	UnitID         uuid.UUID
	PropertyID     uuid.UUID
	LandlordID     uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
	DueDate        time.Time
	Amount         decimal.Decimal
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal
	Status         InvoiceStatus
	LineItems      LineItems
	VoidedAt       *time.Time
	VoidReason     string
}

// NewInvoiceParams carries everything needed to issue an invoice
type NewInvoiceParams struct {
	TenantID       uuid.UUID
	UnitID         uuid.UUID
	PropertyID     uuid.UUID
	LandlordID     uuid.UUID
	InvoiceNumber  string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	DueDate        time.Time
	OpeningBalance decimal.Decimal
	LineItems      []LineItem
}

// NewInvoice issues an invoice. Amount is the sum of the line items and the
// initial Balance/Status come from Apply with nothing allocated.
func NewInvoice(p NewInvoiceParams, now time.Time) (*Invoice, error) {
	if p.TenantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Tenant ID cannot be empty")
	}
	if p.InvoiceNumber == "" {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Invoice number cannot be empty")
	}
	if len(p.InvoiceNumber) > 50 {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Invoice number cannot exceed 50 characters")
	}
	if p.PeriodStart.IsZero() || p.PeriodEnd.IsZero() || p.PeriodEnd.Before(p.PeriodStart) {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Billing period is malformed")
	}
	if p.DueDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Due date is required")
	}
	if len(p.LineItems) == 0 {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Invoice must have at least one line item")
	}
	for _, li := range p.LineItems {
		if err := li.Validate(); err != nil {
			return nil, err
		}
	}

	items := make(LineItems, len(p.LineItems))
	copy(items, p.LineItems)

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(p.TenantID, now),
		InvoiceNumber:       p.InvoiceNumber,
		UnitID:              p.UnitID,
		PropertyID:          p.PropertyID,
		LandlordID:          p.LandlordID,
		PeriodStart:         p.PeriodStart,
		PeriodEnd:           p.PeriodEnd,
		DueDate:             p.DueDate,
		Amount:              items.Total(),
		OpeningBalance:      p.OpeningBalance,
		LineItems:           items,
	}
	Apply(inv, decimal.Zero, now)

	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv, now))

	return inv, nil
}

// TotalObligation is the charge of this period plus the carried-forward balance
func (inv *Invoice) TotalObligation() decimal.Decimal {
	return inv.Amount.Add(inv.OpeningBalance)
}

// IsVoid returns true if the invoice has been voided
func (inv *Invoice) IsVoid() bool {
	return inv.Status.IsVoid()
}

// IsOutstanding returns true if the invoice still has a positive stored balance
func (inv *Invoice) IsOutstanding() bool {
	return !inv.IsVoid() && inv.Balance.IsPositive()
}

// CoversPeriod reports whether the invoice bills exactly the given period
func (inv *Invoice) CoversPeriod(start, end time.Time) bool {
	return shared.CivilDate(inv.PeriodStart).Equal(shared.CivilDate(start)) &&
		shared.CivilDate(inv.PeriodEnd).Equal(shared.CivilDate(end))
}

// Void excludes the invoice from all balance arithmetic.
// Allocations must be reversed first; a void invoice never changes again.
func (inv *Invoice) Void(reason string, allocatedTotal decimal.Decimal, now time.Time) error {
	if inv.IsVoid() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Invoice %s is already void", inv.InvoiceNumber))
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError(shared.CodeValidationFailed, "Void reason is required")
	}
	if allocatedTotal.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Invoice %s has %s allocated; reverse the payments before voiding", inv.InvoiceNumber, valueobject.NewMoney(allocatedTotal)))
	}

	previous := inv.Status
	inv.Status = InvoiceStatusVoid
	inv.VoidedAt = &now
	inv.VoidReason = reason
	inv.UpdatedAt = now

	inv.AddDomainEvent(NewInvoiceVoidedEvent(inv, previous, now))
	return nil
}

// GetBalanceMoney returns the balance as Money
func (inv *Invoice) GetBalanceMoney() valueobject.Money {
	return valueobject.NewMoney(inv.Balance)
}

// GetTotalObligationMoney returns the total obligation as Money
func (inv *Invoice) GetTotalObligationMoney() valueobject.Money {
	return valueobject.NewMoney(inv.TotalObligation())
}

// FormatInvoiceNumber builds "<prefix>-<yyyymm>-<tenant short id>", e.g. INV-202401-1a2b3c4d
func FormatInvoiceNumber(prefix string, periodStart time.Time, tenantID uuid.UUID) string {
	return fmt.Sprintf("%s-%s-%s", prefix, periodStart.Format("200601"), strings.ReplaceAll(tenantID.String(), "-", "")[:8])
}

// Invoice number prefixes
const (
	InvoiceNumberPrefix        = "INV"
	LateFeeInvoiceNumberPrefix = "LF"
)
