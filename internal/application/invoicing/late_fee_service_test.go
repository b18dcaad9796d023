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

func TestLateFeeService_CalculateForTenant_GracePeriod(t *testing.T) {
	f := newFixture(t, day(2024, time.March, 20))
	alice := f.addTenant("alice", "10000", 5, withLateFee(5, "5", "300"))

	tenDaysAgo := day(2024, time.March, 10)
	result, err := f.lateFees.CalculateForTenant(context.Background(), alice.ID, &tenDaysAgo)
	require.NoError(t, err)
	assert.True(t, result.Fee.IsPositive())
	assert.Equal(t, 10, result.DaysOverdue)
	assert.Equal(t, 5, result.PenaltyDays)
	assert.False(t, result.IsWithinGrace)
	assert.Equal(t, invoicing.LateFeeBasisPercentage, result.Basis)

	threeDaysAgo := day(2024, time.March, 17)
	result, err = f.lateFees.CalculateForTenant(context.Background(), alice.ID, &threeDaysAgo)
	require.NoError(t, err)
	assert.True(t, result.Fee.IsZero())
	assert.True(t, result.IsWithinGrace)
}

func TestLateFeeService_CalculateForTenant_DefaultsToCurrentDueDate(t *testing.T) {
	f := newFixture(t, day(2024, time.March, 20))
	alice := f.addTenant("alice", "10000", 5, withLateFee(5, "5", "300"))

	result, err := f.lateFees.CalculateForTenant(context.Background(), alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.March, 5), result.DueDate)
	assert.Equal(t, 15, result.DaysOverdue)
	assert.True(t, result.Fee.Equal(d("500")))

	_, err = f.lateFees.CalculateForTenant(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestLateFeeService_CalculateForInvoice(t *testing.T) {
	f := newFixture(t, day(2024, time.January, 20))
	alice := f.addTenant("alice", "10000", 5, withLateFee(3, "0", "750"))
	jan := f.issueInvoice(t, alice, 2024, time.January, "10000", "0")

	result, err := f.lateFees.CalculateForInvoice(context.Background(), jan.ID)
	require.NoError(t, err)
	assert.True(t, result.Fee.Equal(d("750")))
	assert.Equal(t, invoicing.LateFeeBasisFixed, result.Basis)

	payment := f.addPayment(t, alice, "10000", true)
	_, err = f.allocation.AllocateToOutstanding(context.Background(), payment.ID)
	require.NoError(t, err)

	result, err = f.lateFees.CalculateForInvoice(context.Background(), jan.ID)
	require.NoError(t, err)
	assert.True(t, result.Fee.IsZero(), "settled invoice owes no fee")
	assert.Equal(t, 15, result.DaysOverdue)

	_, err = f.lateFees.CalculateForInvoice(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestLateFeeService_CalculateForPayment(t *testing.T) {
	f := newFixture(t, day(2024, time.April, 14))
	alice := f.addTenant("alice", "20000", 1, withLateFee(7, "10", "1000"))
	payment := f.addPayment(t, alice, "20000", true)

	result, err := f.lateFees.CalculateForPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.April, 1), result.DueDate)
	assert.Equal(t, 13, result.DaysOverdue)
	assert.True(t, result.Fee.Equal(d("2000")))

	_, err = f.lateFees.CalculateForPayment(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestLateFeeService_CalculateForPayment_UsesBillingTimezone(t *testing.T) {
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	f := newFixture(t, time.Date(2024, time.April, 3, 9, 0, 0, 0, nairobi))
	alice := f.addTenant("alice", "20000", 1, withLateFee(0, "0", "1000"))

	// 22:00 UTC on March 31 is 01:00 on April 1 in Nairobi
	received := time.Date(2024, time.March, 31, 22, 0, 0, 0, time.UTC)
	payment, err := invoicing.NewPayment(alice.ID, d("20000"), invoicing.PaymentMethodMobileMoney, "RCV-0401", received, received)
	require.NoError(t, err)
	f.store.addPayment(payment)

	result, err := f.lateFees.CalculateForPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.April, 1), result.DueDate)
	assert.Equal(t, 0, result.DaysOverdue)
	assert.True(t, result.Fee.IsZero())

	// 21:30 UTC on April 1 is already April 2 locally: one day late
	received = time.Date(2024, time.April, 1, 21, 30, 0, 0, time.UTC)
	late, err := invoicing.NewPayment(alice.ID, d("20000"), invoicing.PaymentMethodMobileMoney, "RCV-0402", received, received)
	require.NoError(t, err)
	f.store.addPayment(late)

	result, err = f.lateFees.CalculateForPayment(context.Background(), late.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DaysOverdue)
	assert.True(t, result.Fee.Equal(d("1000")))
}
