// Package utility computes per-period utility charges for a tenant from the
// property's and unit's billing rules and, for metered utilities, meter readings.
package utility

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// BillingMode is how a utility is charged
type BillingMode string

const (
	BillingModeFixed   BillingMode = "FIXED"   // Same flat amount to every tenant in scope
	BillingModeShared  BillingMode = "SHARED"  // Property total split across active tenants
	BillingModeMetered BillingMode = "METERED" // Consumption between readings times rate
)

// IsValid checks if the billing mode is valid
func (m BillingMode) IsValid() bool {
	switch m {
	case BillingModeFixed, BillingModeShared, BillingModeMetered:
		return true
	}
	return false
}

// String returns the string representation of BillingMode
func (m BillingMode) String() string {
	return string(m)
}

// Config is a billing rule for one utility, property-wide when UnitID is nil
type Config struct {
	ID            uuid.UUID
	PropertyID    uuid.UUID
	UnitID        *uuid.UUID
	UtilityTypeID uuid.UUID
	Name          string
	UnitOfMeasure string
	BillingMode   BillingMode
	FixedAmount   decimal.Decimal
	SharedAmount  decimal.Decimal
	Rate          decimal.Decimal
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPropertyWide returns true if the rule applies to every unit in the property
func (c *Config) IsPropertyWide() bool {
	return c.UnitID == nil || *c.UnitID == uuid.Nil
}

// AppliesTo reports whether the rule's scope covers the unit
func (c *Config) AppliesTo(propertyID, unitID uuid.UUID) bool {
	if c.PropertyID != propertyID {
		return false
	}
	return c.IsPropertyWide() || *c.UnitID == unitID
}

// OverlapsPeriod reports whether the effective window intersects [start, end]
func (c *Config) OverlapsPeriod(start, end time.Time) bool {
	if shared.CivilDate(c.EffectiveFrom).After(shared.CivilDate(end)) {
		return false
	}
	if c.EffectiveTo != nil && shared.CivilDate(*c.EffectiveTo).Before(shared.CivilDate(start)) {
		return false
	}
	return true
}

// MeterReading is a cumulative meter value for a unit under a metered config
type MeterReading struct {
	ID              uuid.UUID
	UnitID          uuid.UUID
	UtilityConfigID uuid.UUID
	ReadingDate     time.Time
	Value           decimal.Decimal
	CreatedAt       time.Time
}
