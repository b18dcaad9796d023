package tenancy

import (
	"context"

	"github.com/google/uuid"
)

// TenantRepository is the read-only lookup billing needs from tenant management
type TenantRepository interface {
	// FindByID returns the tenant with its resolved unit/property/landlord chain, nil if absent
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// FindActive returns every tenant with ACTIVE status
	FindActive(ctx context.Context) ([]Tenant, error)

	// CountActiveInProperty counts ACTIVE tenants whose unit belongs to the property
	CountActiveInProperty(ctx context.Context, propertyID uuid.UUID) (int64, error)
}
