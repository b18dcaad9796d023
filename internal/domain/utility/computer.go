package utility

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared/valueobject"
)

// SkipReason explains why a config produced no line item
type SkipReason string

const (
	SkipNonPositiveAmount SkipReason = "non-positive amount"
	SkipNoActiveTenants   SkipReason = "no active tenants in property"
	SkipMissingReading    SkipReason = "missing meter reading"
	SkipNoNewReading      SkipReason = "no new reading this period"
	SkipNoConsumption     SkipReason = "non-positive consumption"
	SkipUnknownMode       SkipReason = "unknown billing mode"
)

// Skipped records a config that was evaluated but not billed
type Skipped struct {
	ConfigID uuid.UUID
	Name     string
	Reason   SkipReason
}

// Readings holds the latest reading at or before period end and the one before it
type Readings struct {
	Latest   *MeterReading
	Previous *MeterReading
}

// Input is everything the computer needs for one tenant and period
type Input struct {
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Configs       []Config
	ActiveTenants int64 // active tenants in the property, counted once per call
	Readings      map[uuid.UUID]Readings
}

// Result carries the utility line items and the configs that were skipped
type Result struct {
	LineItems []invoicing.LineItem
	Skipped   []Skipped
}

// Compute derives the utility line items for one period.
// Configs with no charge for the period are skipped, never errors.
func Compute(in Input) Result {
	res := Result{
		LineItems: make([]invoicing.LineItem, 0, len(in.Configs)),
		Skipped:   make([]Skipped, 0),
	}
	for i := range in.Configs {
		cfg := &in.Configs[i]
		var (
			item   invoicing.LineItem
			reason SkipReason
		)
		switch cfg.BillingMode {
		case BillingModeFixed:
			item, reason = fixedCharge(cfg)
		case BillingModeShared:
			item, reason = sharedCharge(cfg, in.ActiveTenants)
		case BillingModeMetered:
			item, reason = meteredCharge(cfg, in.Readings[cfg.ID], in.PeriodStart)
		default:
			reason = SkipUnknownMode
		}
		if reason != "" {
			res.Skipped = append(res.Skipped, Skipped{ConfigID: cfg.ID, Name: cfg.Name, Reason: reason})
			continue
		}
		res.LineItems = append(res.LineItems, item)
	}
	return res
}

func typeRef(cfg *Config) *uuid.UUID {
	if cfg.UtilityTypeID == uuid.Nil {
		return nil
	}
	id := cfg.UtilityTypeID
	return &id
}

func fixedCharge(cfg *Config) (invoicing.LineItem, SkipReason) {
	if !cfg.FixedAmount.IsPositive() {
		return invoicing.LineItem{}, SkipNonPositiveAmount
	}
	amount := valueobject.RoundAmount(cfg.FixedAmount)
	return invoicing.NewUtilityLineItem(
		fmt.Sprintf("%s (fixed)", cfg.Name),
		decimal.NewFromInt(1), amount, amount, cfg.UnitOfMeasure, typeRef(cfg),
	), ""
}

func sharedCharge(cfg *Config, activeTenants int64) (invoicing.LineItem, SkipReason) {
	if !cfg.SharedAmount.IsPositive() {
		return invoicing.LineItem{}, SkipNonPositiveAmount
	}
	if activeTenants <= 0 {
		return invoicing.LineItem{}, SkipNoActiveTenants
	}
	share := valueobject.RoundAmount(cfg.SharedAmount.Div(decimal.NewFromInt(activeTenants)))
	return invoicing.NewUtilityLineItem(
		fmt.Sprintf("%s (shared among %d tenants)", cfg.Name, activeTenants),
		decimal.NewFromInt(1), share, share, cfg.UnitOfMeasure, typeRef(cfg),
	), ""
}

func meteredCharge(cfg *Config, r Readings, periodStart time.Time) (invoicing.LineItem, SkipReason) {
	if r.Latest == nil || r.Previous == nil {
		return invoicing.LineItem{}, SkipMissingReading
	}
	if shared.CivilDate(r.Latest.ReadingDate).Before(shared.CivilDate(periodStart)) {
		return invoicing.LineItem{}, SkipNoNewReading
	}
	consumption := r.Latest.Value.Sub(r.Previous.Value)
	if !consumption.IsPositive() {
		return invoicing.LineItem{}, SkipNoConsumption
	}
	amount := valueobject.RoundAmount(consumption.Mul(cfg.Rate))
	if !amount.IsPositive() {
		return invoicing.LineItem{}, SkipNonPositiveAmount
	}
	return invoicing.NewUtilityLineItem(
		fmt.Sprintf("%s (%s to %s %s)", cfg.Name, r.Previous.Value.String(), r.Latest.Value.String(), cfg.UnitOfMeasure),
		consumption, cfg.Rate, amount, cfg.UnitOfMeasure, typeRef(cfg),
	), ""
}

// NeedsTenantCount reports whether any config is shared
func NeedsTenantCount(configs []Config) bool {
	for i := range configs {
		if configs[i].BillingMode == BillingModeShared {
			return true
		}
	}
	return false
}
