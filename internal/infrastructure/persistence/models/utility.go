package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/utility"
)

// UtilityConfigModel is the persisted utility billing rule
type UtilityConfigModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PropertyID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_utility_configs_scope,priority:1"`
	UnitID        *uuid.UUID      `gorm:"type:uuid;index:idx_utility_configs_scope,priority:2"`
	UtilityTypeID uuid.UUID       `gorm:"type:uuid;not null"`
	Name          string          `gorm:"type:varchar(100);not null"`
	UnitOfMeasure string          `gorm:"type:varchar(20)"`
	BillingMode   string          `gorm:"type:varchar(20);not null"`
	FixedAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SharedAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Rate          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	EffectiveFrom time.Time       `gorm:"type:date;not null"`
	EffectiveTo   *time.Time      `gorm:"type:date"`
	IsActive      bool            `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UtilityConfigModel) TableName() string {
	return "utility_configs"
}

// ToDomain converts the model to a domain utility Config
func (m *UtilityConfigModel) ToDomain() *utility.Config {
	return &utility.Config{
		ID:            m.ID,
		PropertyID:    m.PropertyID,
		UnitID:        m.UnitID,
		UtilityTypeID: m.UtilityTypeID,
		Name:          m.Name,
		UnitOfMeasure: m.UnitOfMeasure,
		BillingMode:   utility.BillingMode(m.BillingMode),
		FixedAmount:   m.FixedAmount,
		SharedAmount:  m.SharedAmount,
		Rate:          m.Rate,
		EffectiveFrom: m.EffectiveFrom,
		EffectiveTo:   m.EffectiveTo,
		IsActive:      m.IsActive,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// UtilityConfigModelFromDomain creates a persistence model from a domain utility Config
func UtilityConfigModelFromDomain(c *utility.Config) *UtilityConfigModel {
	return &UtilityConfigModel{
		ID:            c.ID,
		PropertyID:    c.PropertyID,
		UnitID:        c.UnitID,
		UtilityTypeID: c.UtilityTypeID,
		Name:          c.Name,
		UnitOfMeasure: c.UnitOfMeasure,
		BillingMode:   string(c.BillingMode),
		FixedAmount:   c.FixedAmount,
		SharedAmount:  c.SharedAmount,
		Rate:          c.Rate,
		EffectiveFrom: c.EffectiveFrom,
		EffectiveTo:   c.EffectiveTo,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// MeterReadingModel is a persisted cumulative meter value
type MeterReadingModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UnitID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_meter_readings_lookup,priority:1"`
	UtilityConfigID uuid.UUID       `gorm:"type:uuid;not null;index:idx_meter_readings_lookup,priority:2"`
	ReadingDate     time.Time       `gorm:"not null;index:idx_meter_readings_lookup,priority:3"`
	Value           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MeterReadingModel) TableName() string {
	return "meter_readings"
}

// ToDomain converts the model to a domain MeterReading
func (m *MeterReadingModel) ToDomain() utility.MeterReading {
	return utility.MeterReading{
		ID:              m.ID,
		UnitID:          m.UnitID,
		UtilityConfigID: m.UtilityConfigID,
		ReadingDate:     m.ReadingDate,
		Value:           m.Value,
		CreatedAt:       m.CreatedAt,
	}
}

// MeterReadingModelFromDomain creates a persistence model from a domain MeterReading
func MeterReadingModelFromDomain(r *utility.MeterReading) *MeterReadingModel {
	return &MeterReadingModel{
		ID:              r.ID,
		UnitID:          r.UnitID,
		UtilityConfigID: r.UtilityConfigID,
		ReadingDate:     r.ReadingDate,
		Value:           r.Value,
		CreatedAt:       r.CreatedAt,
	}
}
