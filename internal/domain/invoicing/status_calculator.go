package invoicing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// CalculateBalance is the raw outstanding balance of an invoice given its allocated total.
// The result is not clamped: a negative balance means the invoice was over-allocated.
func CalculateBalance(inv *Invoice, allocatedTotal decimal.Decimal) decimal.Decimal {
	return inv.Amount.Add(inv.OpeningBalance).Sub(allocatedTotal)
}

// DeriveStatus classifies a non-void invoice from its balance and the current time
func DeriveStatus(inv *Invoice, balance decimal.Decimal, now time.Time) InvoiceStatus {
	if balance.LessThanOrEqual(decimal.Zero) {
		return InvoiceStatusPaid
	}
	if balance.LessThan(inv.TotalObligation()) {
		return InvoiceStatusPartiallyPaid
	}
	if shared.CivilDate(now).After(shared.CivilDate(inv.DueDate)) {
		return InvoiceStatusOverdue
	}
	return InvoiceStatusIssued
}

// Apply refreshes Balance and Status from the allocated total and reports
// whether either changed. Void invoices are never touched.
//
// Every code path that adds, removes or re-reads allocations goes through here.
func Apply(inv *Invoice, allocatedTotal decimal.Decimal, now time.Time) bool {
	if inv.IsVoid() {
		return false
	}

	balance := CalculateBalance(inv, allocatedTotal)
	status := DeriveStatus(inv, balance, now)
	if inv.Balance.Equal(balance) && inv.Status == status {
		return false
	}

	previous := inv.Status
	inv.Balance = balance
	inv.Status = status
	inv.UpdatedAt = now

	if previous != "" && previous != status {
		inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, previous, now))
	}
	return true
}
