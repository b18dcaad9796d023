package invoicing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// corrupt overwrites an invoice's cached fields behind the services' back
func corrupt(f *fixture, id uuid.UUID, balance string, status invoicing.InvoiceStatus) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	inv := f.store.invoices[id]
	inv.Balance = d(balance)
	inv.Status = status
	f.store.invoices[id] = inv
}

func TestRecalculateAll_RepairsDriftAndIsIdempotent(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 2))
	f.recalc.SetBatchSize(2)
	alice := f.addTenant("alice", "10000", 5)
	bob := f.addTenant("bob", "8000", 5)
	jan := f.issueInvoice(t, alice, 2024, time.January, "10000", "0")
	f.issueInvoice(t, alice, 2024, time.February, "10000", "0")
	bobJan := f.issueInvoice(t, bob, 2024, time.January, "8000", "0")

	payment := f.addPayment(t, alice, "4000", true)
	_, err := f.allocation.AllocateToOutstanding(context.Background(), payment.ID)
	require.NoError(t, err)

	corrupt(f, jan.ID, "10000", invoicing.InvoiceStatusIssued)
	corrupt(f, bobJan.ID, "0", invoicing.InvoiceStatusPaid)

	updated, err := f.recalc.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	assert.True(t, f.store.invoice(jan.ID).Balance.Equal(d("6000")))
	assert.Equal(t, invoicing.InvoiceStatusPartiallyPaid, f.store.invoice(jan.ID).Status)
	assert.Equal(t, invoicing.InvoiceStatusIssued, f.store.invoice(bobJan.ID).Status)
	f.assertInvariants(t)

	again, err := f.recalc.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Len(t, f.store.allAllocations(), 1, "recalculation never touches allocation facts")
}

func TestRecalculateAll_PicksUpOverdueAfterTimePasses(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 2))
	alice := f.addTenant("alice", "10000", 5)
	jan := f.issueInvoice(t, alice, 2024, time.January, "10000", "0")

	f.clock.Set(day(2024, time.January, 6))
	updated, err := f.recalc.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, invoicing.InvoiceStatusOverdue, f.store.invoice(jan.ID).Status)
	assert.Len(t, f.events.ofType(invoicing.EventTypeInvoiceStatusChanged), 1)
}

func TestRecalculateForTenant(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 2))
	alice := f.addTenant("alice", "10000", 5)
	bob := f.addTenant("bob", "8000", 5)
	aliceJan := f.issueInvoice(t, alice, 2024, time.January, "10000", "0")
	bobJan := f.issueInvoice(t, bob, 2024, time.January, "8000", "0")
	corrupt(f, aliceJan.ID, "1", invoicing.InvoiceStatusPartiallyPaid)
	corrupt(f, bobJan.ID, "1", invoicing.InvoiceStatusPartiallyPaid)

	updated, err := f.recalc.RecalculateForTenant(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.True(t, f.store.invoice(aliceJan.ID).Balance.Equal(d("10000")))
	assert.True(t, f.store.invoice(bobJan.ID).Balance.Equal(d("1")), "other tenants untouched")
}

func TestRecalculateForInvoice(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 2))
	alice := f.addTenant("alice", "10000", 5)
	jan := f.issueInvoice(t, alice, 2024, time.January, "10000", "0")

	updated, err := f.recalc.RecalculateForInvoice(context.Background(), jan.ID)
	require.NoError(t, err)
	assert.Zero(t, updated)

	_, err = f.recalc.RecalculateForInvoice(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestRecalculateForInvoice_VoidIsSticky(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 2))
	alice := f.addTenant("alice", "10000", 5)
	jan := f.issueInvoice(t, alice, 2024, time.January, "10000", "0")
	_, err := f.recalc.VoidInvoice(context.Background(), VoidInvoiceRequest{InvoiceID: jan.ID, Reason: "tenant moved out"})
	require.NoError(t, err)

	updated, err := f.recalc.RecalculateForInvoice(context.Background(), jan.ID)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Equal(t, invoicing.InvoiceStatusVoid, f.store.invoice(jan.ID).Status)
}

func TestRecalculatePayment(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 2))
	alice := f.addTenant("alice", "10000", 5)
	f.issueInvoice(t, alice, 2024, time.January, "10000", "0")
	payment := f.addPayment(t, alice, "4000", true)
	_, err := f.allocation.AllocateToOutstanding(context.Background(), payment.ID)
	require.NoError(t, err)

	f.store.mu.Lock()
	p := f.store.payments[payment.ID]
	p.UnallocatedAmount = d("4000")
	f.store.payments[payment.ID] = p
	f.store.mu.Unlock()

	changed, err := f.recalc.RecalculatePayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, f.store.payment(payment.ID).UnallocatedAmount.IsZero())

	changed, err = f.recalc.RecalculatePayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestGetOutstandingBalanceForTenant(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 2))
	alice := f.addTenant("alice", "10000", 5)
	jan := f.issueInvoice(t, alice, 2024, time.January, "10000", "0")
	f.issueInvoice(t, alice, 2024, time.February, "10000", "0")
	payment := f.addPayment(t, alice, "2500", true)
	_, err := f.allocation.AllocateToOutstanding(context.Background(), payment.ID)
	require.NoError(t, err)

	// stale cache must not leak into the answer, and must not be repaired
	corrupt(f, jan.ID, "10000", invoicing.InvoiceStatusIssued)

	balance, err := f.recalc.GetOutstandingBalanceForTenant(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("17500")), "balance %s", balance)
	assert.True(t, f.store.invoice(jan.ID).Balance.Equal(d("10000")))

	_, err = f.recalc.GetOutstandingBalanceForTenant(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestVoidInvoice(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 2))
	alice := f.addTenant("alice", "10000", 5)
	jan := f.issueInvoice(t, alice, 2024, time.January, "10000", "0")
	payment := f.addPayment(t, alice, "1000", true)
	_, err := f.allocation.AllocateToOutstanding(context.Background(), payment.ID)
	require.NoError(t, err)

	_, err = f.recalc.VoidInvoice(context.Background(), VoidInvoiceRequest{InvoiceID: jan.ID, Reason: "wrong tenant"})
	require.Error(t, err)
	assert.True(t, shared.IsInvalidState(err))

	_, err = f.allocation.ReverseAllocations(context.Background(), payment.ID, "void pending")
	require.NoError(t, err)

	voided, err := f.recalc.VoidInvoice(context.Background(), VoidInvoiceRequest{InvoiceID: jan.ID, Reason: "wrong tenant"})
	require.NoError(t, err)
	assert.Equal(t, invoicing.InvoiceStatusVoid, voided.Status)
	assert.Equal(t, "wrong tenant", f.store.invoice(jan.ID).VoidReason)
	assert.Len(t, f.events.ofType(invoicing.EventTypeInvoiceVoided), 1)

	balance, err := f.recalc.GetOutstandingBalanceForTenant(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	_, err = f.recalc.VoidInvoice(context.Background(), VoidInvoiceRequest{InvoiceID: jan.ID})
	require.Error(t, err)
	assert.True(t, shared.IsValidationFailed(err))
}
