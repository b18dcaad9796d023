package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/persistence/models"
)

// GormAllocationRepository implements invoicing.AllocationRepository using GORM.
// Rows are inserted or hard-deleted; there is no update path.
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

func (r *GormAllocationRepository) find(query *gorm.DB) (invoicing.Allocations, error) {
	var rows []models.AllocationModel
	if err := query.Order("allocated_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(invoicing.Allocations, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// FindByPayment returns the allocations funded by a payment
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) (invoicing.Allocations, error) {
	return r.find(r.db.WithContext(ctx).Where("payment_id = ?", paymentID))
}

// FindByInvoice returns the allocations applied to an invoice
func (r *GormAllocationRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) (invoicing.Allocations, error) {
	return r.find(r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID))
}

// FindByInvoices returns the allocations applied to any of the invoices
func (r *GormAllocationRepository) FindByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (invoicing.Allocations, error) {
	if len(invoiceIDs) == 0 {
		return invoicing.Allocations{}, nil
	}
	return r.find(r.db.WithContext(ctx).Where("invoice_id IN ?", invoiceIDs))
}

type invoiceSum struct {
	InvoiceID uuid.UUID
	Total     decimal.Decimal
}

// SumByInvoices returns allocated totals keyed by invoice
func (r *GormAllocationRepository) SumByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	totals := make(map[uuid.UUID]decimal.Decimal, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return totals, nil
	}
	var sums []invoiceSum
	err := r.db.WithContext(ctx).
		Model(&models.AllocationModel{}).
		Select("invoice_id, SUM(amount) AS total").
		Where("invoice_id IN ?", invoiceIDs).
		Group("invoice_id").
		Scan(&sums).Error
	if err != nil {
		return nil, err
	}
	for _, s := range sums {
		totals[s.InvoiceID] = s.Total
	}
	return totals, nil
}

// Create inserts allocation facts in one statement
func (r *GormAllocationRepository) Create(ctx context.Context, allocations ...invoicing.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	rows := make([]*models.AllocationModel, len(allocations))
	for i := range allocations {
		rows[i] = models.AllocationModelFromDomain(&allocations[i])
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// DeleteByPayment hard-deletes every allocation of the payment
func (r *GormAllocationRepository) DeleteByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Delete(&models.AllocationModel{})
	return result.RowsAffected, result.Error
}

var _ invoicing.AllocationRepository = (*GormAllocationRepository)(nil)
