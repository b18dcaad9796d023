// Package tenancy holds the rent tenant as seen by billing: the occupant of a
// unit, the chain to its property and landlord, and its rent and late-fee terms.
// Tenants are owned elsewhere; billing only reads them.
package tenancy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantStatus represents the occupancy status of a tenant
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "ACTIVE"
	TenantStatusInactive TenantStatus = "INACTIVE"
	TenantStatusMovedOut TenantStatus = "MOVED_OUT"
)

// IsValid checks if the status is a valid TenantStatus
func (s TenantStatus) IsValid() bool {
	switch s {
	case TenantStatusActive, TenantStatusInactive, TenantStatusMovedOut:
		return true
	}
	return false
}

// String returns the string representation of TenantStatus
func (s TenantStatus) String() string {
	return string(s)
}

// DefaultRentDueDay is used when a tenant has no due day configured
const DefaultRentDueDay = 1

// Tenant is a renter occupying a unit.
// UnitID, PropertyID and LandlordID are the resolved ownership chain; any of
// them may be nil when the chain is broken (unit deleted, property detached).
type Tenant struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Phone              string
	UnitID             *uuid.UUID
	PropertyID         *uuid.UUID
	LandlordID         *uuid.UUID
	MonthlyRent        decimal.Decimal
	RentDueDay         int
	GracePeriodDays    int
	LateFeePercentage  decimal.Decimal
	LateFeeFixedAmount decimal.Decimal
	Status             TenantStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsActive returns true if the tenant is currently billed
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// HasResolvableChain reports whether unit, property and landlord are all known
func (t *Tenant) HasResolvableChain() bool {
	return t.UnitID != nil && *t.UnitID != uuid.Nil &&
		t.PropertyID != nil && *t.PropertyID != uuid.Nil &&
		t.LandlordID != nil && *t.LandlordID != uuid.Nil
}

// DueDateFor applies the rent-due-day rule to a billing month.
// A due day past the end of a short month falls on the month's last day.
func (t *Tenant) DueDateFor(year int, month time.Month) time.Time {
	day := t.RentDueDay
	if day < 1 {
		day = DefaultRentDueDay
	}
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// BillingPeriod returns the first and last calendar day of a month
func BillingPeriod(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, month, DaysIn(year, month), 0, 0, 0, 0, time.UTC)
	return start, end
}

// DaysIn returns the number of days in a month
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
