package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
)

// PropertyModel is the slice of the property record billing reads
type PropertyModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name       string     `gorm:"type:varchar(200);not null"`
	LandlordID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PropertyModel) TableName() string {
	return "properties"
}

// UnitModel is the slice of the unit record billing reads
type UnitModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PropertyID *uuid.UUID `gorm:"type:uuid;index"`
	Label      string     `gorm:"type:varchar(50);not null"`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UnitModel) TableName() string {
	return "units"
}

// TenantModel is the persisted rent tenant
type TenantModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name               string          `gorm:"type:varchar(200);not null"`
	Email              string          `gorm:"type:varchar(200)"`
	Phone              string          `gorm:"type:varchar(30)"`
	UnitID             *uuid.UUID      `gorm:"type:uuid;index"`
	MonthlyRent        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	RentDueDay         int             `gorm:"not null;default:1"`
	GracePeriodDays    int             `gorm:"not null;default:0"`
	LateFeePercentage  decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	LateFeeFixedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status             string          `gorm:"type:varchar(20);not null;index"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// TenantWithChain is a tenant row joined with its unit's property and landlord
type TenantWithChain struct {
	TenantModel
	ResolvedPropertyID *uuid.UUID
	ResolvedLandlordID *uuid.UUID
}

// ToDomain converts the joined row to a domain Tenant
func (m *TenantWithChain) ToDomain() *tenancy.Tenant {
	t := m.TenantModel.ToDomain()
	t.PropertyID = m.ResolvedPropertyID
	t.LandlordID = m.ResolvedLandlordID
	return t
}

// ToDomain converts the tenant row alone; the property/landlord chain stays unresolved
func (m *TenantModel) ToDomain() *tenancy.Tenant {
	return &tenancy.Tenant{
		ID:                 m.ID,
		Name:               m.Name,
		Email:              m.Email,
		Phone:              m.Phone,
		UnitID:             m.UnitID,
		MonthlyRent:        m.MonthlyRent,
		RentDueDay:         m.RentDueDay,
		GracePeriodDays:    m.GracePeriodDays,
		LateFeePercentage:  m.LateFeePercentage,
		LateFeeFixedAmount: m.LateFeeFixedAmount,
		Status:             tenancy.TenantStatus(m.Status),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// TenantModelFromDomain creates a persistence model from a domain Tenant
func TenantModelFromDomain(t *tenancy.Tenant) *TenantModel {
	return &TenantModel{
		ID:                 t.ID,
		Name:               t.Name,
		Email:              t.Email,
		Phone:              t.Phone,
		UnitID:             t.UnitID,
		MonthlyRent:        t.MonthlyRent,
		RentDueDay:         t.RentDueDay,
		GracePeriodDays:    t.GracePeriodDays,
		LateFeePercentage:  t.LateFeePercentage,
		LateFeeFixedAmount: t.LateFeeFixedAmount,
		Status:             string(t.Status),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
