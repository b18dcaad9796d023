package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements invoicing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) first(query *gorm.DB) (*invoicing.Payment, error) {
	var m models.PaymentModel
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByID returns the payment or nil when it does not exist
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate loads the payment with SELECT ... FOR UPDATE
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*invoicing.Payment, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id))
}

// FindByTransactionReference returns the payment carrying the gateway reference, nil if none
func (r *GormPaymentRepository) FindByTransactionReference(ctx context.Context, reference string) (*invoicing.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	return r.first(r.db.WithContext(ctx).Where("transaction_reference = ?", reference))
}

// FindAll returns payments matching the filter
func (r *GormPaymentRepository) FindAll(ctx context.Context, f invoicing.PaymentFilter) ([]*invoicing.Payment, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{})
	if f.TenantID != nil {
		query = query.Scopes(forTenant(*f.TenantID))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}

	var rows []models.PaymentModel
	if err := query.Scopes(ordered(f.Filter, PaymentSortFields, "received_at"), paginate(f.Filter)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*invoicing.Payment, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save inserts or fully overwrites the payment.
// A duplicate transaction reference surfaces as a CONFLICT domain error.
func (r *GormPaymentRepository) Save(ctx context.Context, p *invoicing.Payment) error {
	err := r.db.WithContext(ctx).Save(models.PaymentModelFromDomain(p)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainError(shared.CodeConflict, "A payment with this transaction reference already exists")
	}
	return err
}

// SaveWithLock updates the payment's mutable columns if its version is unchanged
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, p *invoicing.Payment) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"unallocated_amount": p.UnallocatedAmount,
			"status":             string(p.Status),
			"completed_at":       p.CompletedAt,
			"rejected_at":        p.RejectedAt,
			"rejection_reason":   p.RejectionReason,
			"remark":             p.Remark,
			"version":            p.Version + 1,
			"updated_at":         p.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("id = ?", p.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.NewDomainError(shared.CodeNotFound, "Payment not found")
		}
		return shared.ErrConcurrencyConflict
	}
	p.IncrementVersion()
	return nil
}

var _ invoicing.PaymentRepository = (*GormPaymentRepository)(nil)
