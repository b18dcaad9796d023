package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
)

// InvoiceModel is the persisted invoice. Balance and Status are caches over
// payment_allocations and are rewritten whenever allocations change.
// (tenant_id, period_start, period_end) is unique so generation can insert
// with ON CONFLICT DO NOTHING.
type InvoiceModel struct {
	AggregateModel
	TenantID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uq_invoices_tenant_period,priority:1"`
	InvoiceNumber  string              `gorm:"type:varchar(50);not null;index"`
	UnitID         uuid.UUID           `gorm:"type:uuid"`
	PropertyID     uuid.UUID           `gorm:"type:uuid;index"`
	LandlordID     uuid.UUID           `gorm:"type:uuid"`
	PeriodStart    time.Time           `gorm:"type:date;not null;uniqueIndex:uq_invoices_tenant_period,priority:2"`
	PeriodEnd      time.Time           `gorm:"type:date;not null;uniqueIndex:uq_invoices_tenant_period,priority:3"`
	DueDate        time.Time           `gorm:"type:date;not null;index"`
	Amount         decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	OpeningBalance decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Balance        decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Status         string              `gorm:"type:varchar(20);not null;index"`
	LineItems      invoicing.LineItems `gorm:"type:jsonb;not null"`
	VoidedAt       *time.Time
	VoidReason     string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		InvoiceNumber:  m.InvoiceNumber,
		UnitID:         m.UnitID,
		PropertyID:     m.PropertyID,
		LandlordID:     m.LandlordID,
		PeriodStart:    m.PeriodStart,
		PeriodEnd:      m.PeriodEnd,
		DueDate:        m.DueDate,
		Amount:         m.Amount,
		OpeningBalance: m.OpeningBalance,
		Balance:        m.Balance,
		Status:         invoicing.InvoiceStatus(m.Status),
		LineItems:      m.LineItems,
		VoidedAt:       m.VoidedAt,
		VoidReason:     m.VoidReason,
	}
	inv.ID = m.ID
	inv.CreatedAt = m.CreatedAt
	inv.UpdatedAt = m.UpdatedAt
	inv.Version = m.Version
	inv.TenantID = m.TenantID
	return inv
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		InvoiceNumber:  inv.InvoiceNumber,
		UnitID:         inv.UnitID,
		PropertyID:     inv.PropertyID,
		LandlordID:     inv.LandlordID,
		PeriodStart:    inv.PeriodStart,
		PeriodEnd:      inv.PeriodEnd,
		DueDate:        inv.DueDate,
		Amount:         inv.Amount,
		OpeningBalance: inv.OpeningBalance,
		Balance:        inv.Balance,
		Status:         string(inv.Status),
		LineItems:      inv.LineItems,
		VoidedAt:       inv.VoidedAt,
		VoidReason:     inv.VoidReason,
	}
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.Version = inv.Version
	m.TenantID = inv.TenantID
	return m
}

// PaymentModel is the persisted payment. UnallocatedAmount is a cache.
type PaymentModel struct {
	TenantAggregateModel
	Amount               decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnallocatedAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status               string          `gorm:"type:varchar(20);not null;index"`
	Method               string          `gorm:"type:varchar(30);not null"`
	TransactionReference *string         `gorm:"type:varchar(100);uniqueIndex:uq_payments_transaction_reference,where:transaction_reference IS NOT NULL"`
	ReceivedAt           time.Time       `gorm:"not null"`
	CompletedAt          *time.Time
	RejectedAt           *time.Time
	RejectionReason      string `gorm:"type:varchar(500)"`
	Remark               string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the model to a domain Payment
func (m *PaymentModel) ToDomain() *invoicing.Payment {
	p := &invoicing.Payment{
		Amount:            m.Amount,
		UnallocatedAmount: m.UnallocatedAmount,
		Status:            invoicing.PaymentStatus(m.Status),
		Method:            invoicing.PaymentMethod(m.Method),
		ReceivedAt:        m.ReceivedAt,
		CompletedAt:       m.CompletedAt,
		RejectedAt:        m.RejectedAt,
		RejectionReason:   m.RejectionReason,
		Remark:            m.Remark,
	}
	if m.TransactionReference != nil {
		p.TransactionReference = *m.TransactionReference
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// PaymentModelFromDomain creates a persistence model from a domain Payment.
// An empty transaction reference is stored as NULL so the unique index ignores it.
func PaymentModelFromDomain(p *invoicing.Payment) *PaymentModel {
	m := &PaymentModel{
		Amount:            p.Amount,
		UnallocatedAmount: p.UnallocatedAmount,
		Status:            string(p.Status),
		Method:            string(p.Method),
		ReceivedAt:        p.ReceivedAt,
		CompletedAt:       p.CompletedAt,
		RejectedAt:        p.RejectedAt,
		RejectionReason:   p.RejectionReason,
		Remark:            p.Remark,
	}
	if p.TransactionReference != "" {
		ref := p.TransactionReference
		m.TransactionReference = &ref
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	return m
}

// AllocationModel is a persisted allocation fact
type AllocationModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PaymentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AllocatedAt time.Time       `gorm:"not null"`
	Remark      string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the model to a domain Allocation
func (m *AllocationModel) ToDomain() invoicing.Allocation {
	return invoicing.Allocation{
		ID:          m.ID,
		PaymentID:   m.PaymentID,
		InvoiceID:   m.InvoiceID,
		TenantID:    m.TenantID,
		Amount:      m.Amount,
		AllocatedAt: m.AllocatedAt,
		Remark:      m.Remark,
	}
}

// AllocationModelFromDomain creates a persistence model from a domain Allocation
func AllocationModelFromDomain(a *invoicing.Allocation) *AllocationModel {
	return &AllocationModel{
		ID:          a.ID,
		PaymentID:   a.PaymentID,
		InvoiceID:   a.InvoiceID,
		TenantID:    a.TenantID,
		Amount:      a.Amount,
		AllocatedAt: a.AllocatedAt,
		Remark:      a.Remark,
	}
}

// BillingModels lists every billing table model in dependency order, for AutoMigrate in tests
func BillingModels() []any {
	return []any{
		&PropertyModel{},
		&UnitModel{},
		&TenantModel{},
		&UtilityConfigModel{},
		&MeterReadingModel{},
		&InvoiceModel{},
		&PaymentModel{},
		&AllocationModel{},
	}
}
