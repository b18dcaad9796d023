package persistence

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/persistence/models"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/telemetry"
)

// GormBillingSnapshotProvider reads portfolio-wide totals from the cached
// invoice and payment columns for the billing gauges
type GormBillingSnapshotProvider struct {
	db *gorm.DB
}

// NewGormBillingSnapshotProvider creates a new GormBillingSnapshotProvider
func NewGormBillingSnapshotProvider(db *gorm.DB) *GormBillingSnapshotProvider {
	return &GormBillingSnapshotProvider{db: db}
}

// BillingSnapshot implements telemetry.SnapshotProvider
func (p *GormBillingSnapshotProvider) BillingSnapshot(ctx context.Context) (*telemetry.BillingSnapshot, error) {
	db := p.db.WithContext(ctx)
	var snap telemetry.BillingSnapshot

	var outstanding decimal.Decimal
	if err := db.Model(&models.InvoiceModel{}).
		Select("COALESCE(SUM(balance), 0)").
		Where("status <> ? AND balance > 0", string(invoicing.InvoiceStatusVoid)).
		Scan(&outstanding).Error; err != nil {
		return nil, fmt.Errorf("sum outstanding balance: %w", err)
	}
	snap.OutstandingAmount = outstanding

	if err := db.Model(&models.InvoiceModel{}).
		Where("status = ?", string(invoicing.InvoiceStatusOverdue)).
		Count(&snap.OverdueInvoices).Error; err != nil {
		return nil, fmt.Errorf("count overdue invoices: %w", err)
	}

	var unallocated decimal.Decimal
	if err := db.Model(&models.PaymentModel{}).
		Select("COALESCE(SUM(unallocated_amount), 0)").
		Where("status = ?", string(invoicing.PaymentStatusCompleted)).
		Scan(&unallocated).Error; err != nil {
		return nil, fmt.Errorf("sum unallocated funds: %w", err)
	}
	snap.UnallocatedAmount = unallocated

	return &snap, nil
}

var _ telemetry.SnapshotProvider = (*GormBillingSnapshotProvider)(nil)
