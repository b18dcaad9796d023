package invoicing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func newTestInvoice(t *testing.T, tenantID uuid.UUID, month time.Month, amount, opening string, now time.Time) *Invoice {
	t.Helper()
	start := day(2024, month, 1)
	end := start.AddDate(0, 1, -1)
	inv, err := NewInvoice(NewInvoiceParams{
		TenantID:       tenantID,
		UnitID:         uuid.New(),
		PropertyID:     uuid.New(),
		LandlordID:     uuid.New(),
		InvoiceNumber:  FormatInvoiceNumber(InvoiceNumberPrefix, start, tenantID),
		PeriodStart:    start,
		PeriodEnd:      end,
		DueDate:        day(2024, month, 5),
		OpeningBalance: d(opening),
		LineItems:      []LineItem{NewRentLineItem(d(amount), "")},
	}, now)
	require.NoError(t, err)
	return inv
}

func newCompletedPayment(t *testing.T, tenantID uuid.UUID, amount string, now time.Time) *Payment {
	t.Helper()
	p, err := NewPayment(tenantID, d(amount), PaymentMethodMobileMoney, "QK12ABC", now, now)
	require.NoError(t, err)
	require.NoError(t, p.Complete(now))
	return p
}

// assertInvariants checks the balance and conservation properties against the facts
func assertInvariants(t *testing.T, invoices []*Invoice, payments []*Payment, facts Allocations) {
	t.Helper()
	for _, inv := range invoices {
		allocated := facts.TotalForInvoice(inv.ID)
		require.True(t, inv.Balance.Equal(inv.Amount.Add(inv.OpeningBalance).Sub(allocated)),
			"balance invariant broken for %s: balance=%s allocated=%s", inv.InvoiceNumber, inv.Balance, allocated)
		require.True(t, allocated.LessThanOrEqual(inv.TotalObligation()), "over-allocated %s", inv.InvoiceNumber)
	}
	for _, p := range payments {
		allocated := facts.TotalForPayment(p.ID)
		require.True(t, p.Amount.Equal(p.UnallocatedAmount.Add(allocated)),
			"conservation broken: amount=%s unallocated=%s allocated=%s", p.Amount, p.UnallocatedAmount, allocated)
	}
}

// applyOutcome mutates the in-memory fact set the way the persistence layer would
func applyOutcome(facts Allocations, out *AllocationOutcome) Allocations {
	removed := make(map[uuid.UUID]struct{}, len(out.Removed))
	for _, a := range out.Removed {
		removed[a.ID] = struct{}{}
	}
	next := make(Allocations, 0, len(facts)+len(out.Created))
	for _, a := range facts {
		if _, gone := removed[a.ID]; !gone {
			next = append(next, a)
		}
	}
	return append(next, out.Created...)
}
