package tenancy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestTenant_HasResolvableChain(t *testing.T) {
	full := Tenant{UnitID: ptr(uuid.New()), PropertyID: ptr(uuid.New()), LandlordID: ptr(uuid.New())}
	assert.True(t, full.HasResolvableChain())

	noLandlord := full
	noLandlord.LandlordID = nil
	assert.False(t, noLandlord.HasResolvableChain())

	nilUnit := full
	nilUnit.UnitID = ptr(uuid.Nil)
	assert.False(t, nilUnit.HasResolvableChain())
}

func TestTenant_DueDateFor(t *testing.T) {
	tests := []struct {
		name   string
		dueDay int
		year   int
		month  time.Month
		want   time.Time
	}{
		{"regular day", 5, 2024, time.January, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"unset defaults to first", 0, 2024, time.March, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"clamped in leap february", 31, 2024, time.February, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"clamped in april", 31, 2023, time.April, time.Date(2023, 4, 30, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := Tenant{RentDueDay: tt.dueDay}
			assert.Equal(t, tt.want, tenant.DueDateFor(tt.year, tt.month))
		})
	}
}

func TestBillingPeriod(t *testing.T) {
	start, end := BillingPeriod(2023, time.February)
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), end)

	start, end = BillingPeriod(2024, time.December)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestTenantStatus_IsValid(t *testing.T) {
	assert.True(t, TenantStatusActive.IsValid())
	assert.True(t, TenantStatusMovedOut.IsValid())
	assert.False(t, TenantStatus("EVICTED").IsValid())
}
