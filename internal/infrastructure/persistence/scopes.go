package persistence

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// forTenant restricts a query to one rent tenant
func forTenant(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// paginate applies the filter's page window; a zero page size means no paging
func paginate(f shared.Filter) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.PageSize <= 0 {
			return db
		}
		return db.Offset(f.Offset()).Limit(f.PageSize)
	}
}

// ordered applies a whitelisted ORDER BY with id as tie breaker
func ordered(f shared.Filter, allowed map[string]bool, defaultField string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		field := ValidateSortField(f.OrderBy, allowed, defaultField)
		return db.Order(field + " " + ValidateSortOrder(f.OrderDir)).Order("id ASC")
	}
}
