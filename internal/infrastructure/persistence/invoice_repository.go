package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func toInvoices(rows []models.InvoiceModel) []*invoicing.Invoice {
	out := make([]*invoicing.Invoice, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// FindByID returns the invoice or nil when it does not exist
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var m models.InvoiceModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByIDs returns the invoices found among ids
func (r *GormInvoiceRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*invoicing.Invoice, error) {
	if len(ids) == 0 {
		return []*invoicing.Invoice{}, nil
	}
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toInvoices(rows), nil
}

func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, f invoicing.InvoiceFilter) *gorm.DB {
	if f.TenantID != nil {
		query = query.Scopes(forTenant(*f.TenantID))
	}
	if f.PropertyID != nil {
		query = query.Where("property_id = ?", *f.PropertyID)
	}
	if f.PeriodStart != nil {
		query = query.Where("period_start = ?", *f.PeriodStart)
	}
	if f.PeriodEnd != nil {
		query = query.Where("period_end = ?", *f.PeriodEnd)
	}
	if f.PeriodEndBefore != nil {
		query = query.Where("period_end < ?", *f.PeriodEndBefore)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}
	if f.ExcludeVoid || f.OnlyOutstanding {
		query = query.Where("status <> ?", string(invoicing.InvoiceStatusVoid))
	}
	if f.OnlyOutstanding {
		query = query.Where("balance > 0")
	}
	return query
}

// FindAll returns invoices matching the filter
func (r *GormInvoiceRepository) FindAll(ctx context.Context, f invoicing.InvoiceFilter) ([]*invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), f).
		Scopes(ordered(f.Filter, InvoiceSortFields, "created_at"), paginate(f.Filter))
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toInvoices(rows), nil
}

// Count counts invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, f invoicing.InvoiceFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), f).Count(&count).Error
	return count, err
}

// FindOutstandingForTenant returns the tenant's open invoices oldest due first
func (r *GormInvoiceRepository) FindOutstandingForTenant(ctx context.Context, tenantID uuid.UUID) ([]*invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}),
		invoicing.InvoiceFilter{TenantID: &tenantID, OnlyOutstanding: true}).
		Order("due_date ASC").
		Order("period_start ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toInvoices(rows), nil
}

// ExistsForPeriod reports whether an invoice bills exactly (tenant, start, end)
func (r *GormInvoiceRepository) ExistsForPeriod(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Scopes(forTenant(tenantID)).
		Where("period_start = ? AND period_end = ?", shared.CivilDate(periodStart), shared.CivilDate(periodEnd)).
		Count(&count).Error
	return count > 0, err
}

// CreateIfAbsent inserts the invoice unless its (tenant, period) already exists.
// The unique index decides; a concurrent generator losing the race sees false.
func (r *GormInvoiceRepository) CreateIfAbsent(ctx context.Context, inv *invoicing.Invoice) (bool, error) {
	m := models.InvoiceModelFromDomain(inv)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "period_start"}, {Name: "period_end"}},
			DoNothing: true,
		}).
		Create(m)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveWithLock updates the invoice's mutable columns if its version is unchanged
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", inv.ID, inv.Version).
		Updates(map[string]any{
			"balance":     inv.Balance,
			"status":      string(inv.Status),
			"voided_at":   inv.VoidedAt,
			"void_reason": inv.VoidReason,
			"version":     inv.Version + 1,
			"updated_at":  inv.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.lockFailure(ctx, inv.ID)
	}
	inv.IncrementVersion()
	return nil
}

func (r *GormInvoiceRepository) lockFailure(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.NewDomainError(shared.CodeNotFound, "Invoice not found")
	}
	return shared.ErrConcurrencyConflict
}

var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
