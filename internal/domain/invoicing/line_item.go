package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared/valueobject"
)

// LineItemType classifies a charge on an invoice
type LineItemType string

const (
	LineItemTypeRent    LineItemType = "RENT"
	LineItemTypeUtility LineItemType = "UTILITY"
	LineItemTypeLateFee LineItemType = "LATE_FEE"
)

// IsValid checks if the line item type is valid
func (t LineItemType) IsValid() bool {
	switch t {
	case LineItemTypeRent, LineItemTypeUtility, LineItemTypeLateFee:
		return true
	}
	return false
}

// String returns the string representation of LineItemType
func (t LineItemType) String() string {
	return string(t)
}

// LineItem is one immutable charge on an invoice.
// Rent and late-fee items are flat entries; utility items carry
// Amount == round(Quantity * Rate, 2).
type LineItem struct {
	Type           LineItemType    `json:"type"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	Rate           decimal.Decimal `json:"rate"`
	Amount         decimal.Decimal `json:"amount"`
	UnitOfMeasure  string          `json:"unit_of_measure,omitempty"`
	UtilityTypeRef *uuid.UUID      `json:"utility_type_ref,omitempty"`
}

// NewRentLineItem creates the monthly rent charge
func NewRentLineItem(monthlyRent decimal.Decimal, description string) LineItem {
	if description == "" {
		description = "Monthly rent"
	}
	return LineItem{
		Type:        LineItemTypeRent,
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		Rate:        monthlyRent,
		Amount:      monthlyRent,
	}
}

// NewUtilityLineItem creates a utility charge
func NewUtilityLineItem(description string, quantity, rate, amount decimal.Decimal, unitOfMeasure string, utilityTypeRef *uuid.UUID) LineItem {
	return LineItem{
		Type:           LineItemTypeUtility,
		Description:    description,
		Quantity:       quantity,
		Rate:           rate,
		Amount:         amount,
		UnitOfMeasure:  unitOfMeasure,
		UtilityTypeRef: utilityTypeRef,
	}
}

// NewLateFeeLineItem creates a flat late fee charge
func NewLateFeeLineItem(description string, fee decimal.Decimal) LineItem {
	return LineItem{
		Type:        LineItemTypeLateFee,
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		Rate:        fee,
		Amount:      fee,
	}
}

// Validate checks the line item is well formed
func (li LineItem) Validate() error {
	if !li.Type.IsValid() {
		return shared.NewDomainError(shared.CodeValidationFailed, fmt.Sprintf("Line item type %q is not valid", li.Type))
	}
	if li.Description == "" {
		return shared.NewDomainError(shared.CodeValidationFailed, "Line item description cannot be empty")
	}
	if li.Amount.IsNegative() {
		return shared.NewDomainError(shared.CodeValidationFailed, fmt.Sprintf("Line item %q has a negative amount", li.Description))
	}
	return nil
}

// GetAmountMoney returns the amount as Money
func (li LineItem) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoney(li.Amount)
}

// LineItems is the ordered charge ledger of an invoice, stored as JSONB
type LineItems []LineItem

// Total sums the line item amounts
func (items LineItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Amount)
	}
	return total
}

// HasType reports whether any item has the given type
func (items LineItems) HasType(t LineItemType) bool {
	for _, li := range items {
		if li.Type == t {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (items LineItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (items *LineItems) Scan(value interface{}) error {
	if value == nil {
		*items = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*items = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, items)
}
