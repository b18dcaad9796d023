package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/tenancy"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/persistence/models"
)

// GormTenantRepository implements tenancy.TenantRepository using GORM.
// The property and landlord of a tenant are resolved through its unit;
// a missing unit or property leaves the chain unresolved.
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

const tenantChainSelect = "tenants.*, units.property_id AS resolved_property_id, properties.landlord_id AS resolved_landlord_id"

func (r *GormTenantRepository) withChain(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("tenants").
		Select(tenantChainSelect).
		Joins("LEFT JOIN units ON units.id = tenants.unit_id").
		Joins("LEFT JOIN properties ON properties.id = units.property_id")
}

// FindByID returns the tenant with its resolved chain, nil if absent
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenancy.Tenant, error) {
	var rows []models.TenantWithChain
	if err := r.withChain(ctx).Where("tenants.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].ToDomain(), nil
}

// FindActive returns every ACTIVE tenant ordered by creation
func (r *GormTenantRepository) FindActive(ctx context.Context) ([]tenancy.Tenant, error) {
	var rows []models.TenantWithChain
	err := r.withChain(ctx).
		Where("tenants.status = ?", string(tenancy.TenantStatusActive)).
		Order("tenants.created_at ASC").
		Order("tenants.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	tenants := make([]tenancy.Tenant, len(rows))
	for i := range rows {
		tenants[i] = *rows[i].ToDomain()
	}
	return tenants, nil
}

// CountActiveInProperty counts ACTIVE tenants whose unit belongs to the property
func (r *GormTenantRepository) CountActiveInProperty(ctx context.Context, propertyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TenantModel{}).
		Joins("JOIN units ON units.id = tenants.unit_id").
		Where("units.property_id = ? AND tenants.status = ?", propertyID, string(tenancy.TenantStatusActive)).
		Count(&count).Error
	return count, err
}

// Save upserts the tenant row. Tenant records are owned by tenant management;
// this exists for seeding and the CLI.
func (r *GormTenantRepository) Save(ctx context.Context, t *tenancy.Tenant) error {
	return r.db.WithContext(ctx).Save(models.TenantModelFromDomain(t)).Error
}

var _ tenancy.TenantRepository = (*GormTenantRepository)(nil)
