package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared/valueobject"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
)

// LateFeePolicy is a tenant's late-fee configuration
type LateFeePolicy struct {
	MonthlyRent     decimal.Decimal
	GracePeriodDays int
	Percentage      decimal.Decimal
	FixedAmount     decimal.Decimal
}

// PolicyFromTenant reads the late-fee fields of a tenant
func PolicyFromTenant(t *tenancy.Tenant) LateFeePolicy {
	return LateFeePolicy{
		MonthlyRent:     t.MonthlyRent,
		GracePeriodDays: t.GracePeriodDays,
		Percentage:      t.LateFeePercentage,
		FixedAmount:     t.LateFeeFixedAmount,
	}
}

func (p LateFeePolicy) grace() int {
	if p.GracePeriodDays < 0 {
		return 0
	}
	return p.GracePeriodDays
}

// PercentageFee is MonthlyRent x Percentage / 100 rounded to cents
func (p LateFeePolicy) PercentageFee() decimal.Decimal {
	if !p.Percentage.IsPositive() {
		return decimal.Zero
	}
	return valueobject.NewMoney(p.MonthlyRent).CalculatePercentage(p.Percentage).Round().Amount()
}

// FixedFee is the configured flat fee, zero when unset
func (p LateFeePolicy) FixedFee() decimal.Decimal {
	if !p.FixedAmount.IsPositive() {
		return decimal.Zero
	}
	return valueobject.RoundAmount(p.FixedAmount)
}

// Describe renders the policy for display
func (p LateFeePolicy) Describe() string {
	fixed, pct := p.FixedFee(), p.PercentageFee()
	var fee string
	switch {
	case fixed.IsPositive() && pct.IsPositive():
		fee = fmt.Sprintf("the greater of %s or %s%% of monthly rent (%s)",
			valueobject.NewMoney(fixed), p.Percentage.String(), valueobject.NewMoney(pct))
	case fixed.IsPositive():
		fee = valueobject.NewMoney(fixed).String()
	case pct.IsPositive():
		fee = fmt.Sprintf("%s%% of monthly rent (%s)", p.Percentage.String(), valueobject.NewMoney(pct))
	default:
		return "No late fee configured"
	}
	return fmt.Sprintf("Late fee of %s, charged after a %d-day grace period", fee, p.grace())
}

// LateFeeBasis names which fee mode produced the fee
type LateFeeBasis string

const (
	LateFeeBasisNone       LateFeeBasis = "NONE"
	LateFeeBasisFixed      LateFeeBasis = "FIXED"
	LateFeeBasisPercentage LateFeeBasis = "PERCENTAGE"
)

// LateFeeResult is the fee plus a breakdown for display. Nothing here is stored.
type LateFeeResult struct {
	Fee             decimal.Decimal `json:"fee"`
	DueDate         time.Time       `json:"due_date"`
	AsOf            time.Time       `json:"as_of"`
	DaysOverdue     int             `json:"days_overdue"`
	GracePeriodDays int             `json:"grace_period_days"`
	PenaltyDays     int             `json:"penalty_days"`
	IsWithinGrace   bool            `json:"is_within_grace"`
	FixedFee        decimal.Decimal `json:"fixed_fee"`
	PercentageFee   decimal.Decimal `json:"percentage_fee"`
	Basis           LateFeeBasis    `json:"basis"`
	Description     string          `json:"description"`
}

// Breakdown renders the day arithmetic, e.g. "10 days overdue, 5-day grace period, 5 penalty days"
func (r *LateFeeResult) Breakdown() string {
	parts := []string{
		fmt.Sprintf("%d days overdue", r.DaysOverdue),
		fmt.Sprintf("%d-day grace period", r.GracePeriodDays),
		fmt.Sprintf("%d penalty days", r.PenaltyDays),
	}
	return strings.Join(parts, ", ")
}

// IsChargeable reports whether a positive fee is due
func (r *LateFeeResult) IsChargeable() bool {
	return r.Fee.IsPositive()
}

// CalculateLateFee computes the fee owed on a charge due on dueDate as of today.
// Within the grace period the fee is zero; past it the larger of the fixed and
// percentage fees applies.
func CalculateLateFee(policy LateFeePolicy, dueDate, today time.Time) *LateFeeResult {
	days := shared.DaysBetween(dueDate, today)
	if days < 0 {
		days = 0
	}
	grace := policy.grace()

	result := &LateFeeResult{
		Fee:             decimal.Zero,
		DueDate:         shared.CivilDate(dueDate),
		AsOf:            shared.CivilDate(today),
		DaysOverdue:     days,
		GracePeriodDays: grace,
		FixedFee:        policy.FixedFee(),
		PercentageFee:   policy.PercentageFee(),
		Basis:           LateFeeBasisNone,
		Description:     policy.Describe(),
	}

	if days <= grace {
		result.IsWithinGrace = true
		return result
	}
	result.PenaltyDays = days - grace

	switch {
	case result.FixedFee.IsZero() && result.PercentageFee.IsZero():
	case result.FixedFee.GreaterThanOrEqual(result.PercentageFee):
		result.Fee = result.FixedFee
		result.Basis = LateFeeBasisFixed
	default:
		result.Fee = result.PercentageFee
		result.Basis = LateFeeBasisPercentage
	}
	return result
}
