package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/utility"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/persistence/models"
)

// GormUtilityConfigRepository implements utility.ConfigRepository using GORM
type GormUtilityConfigRepository struct {
	db *gorm.DB
}

// NewGormUtilityConfigRepository creates a new GormUtilityConfigRepository
func NewGormUtilityConfigRepository(db *gorm.DB) *GormUtilityConfigRepository {
	return &GormUtilityConfigRepository{db: db}
}

// FindActiveForUnit returns active property-wide or unit-scoped configs whose
// effective window overlaps [start, end], ordered by name
func (r *GormUtilityConfigRepository) FindActiveForUnit(ctx context.Context, propertyID, unitID uuid.UUID, start, end time.Time) ([]utility.Config, error) {
	var rows []models.UtilityConfigModel
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND is_active = ?", propertyID, true).
		Where("unit_id IS NULL OR unit_id = ?", unitID).
		Where("effective_from <= ?", shared.CivilDate(end)).
		Where("effective_to IS NULL OR effective_to >= ?", shared.CivilDate(start)).
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]utility.Config, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindByID returns the config or nil when it does not exist
func (r *GormUtilityConfigRepository) FindByID(ctx context.Context, id uuid.UUID) (*utility.Config, error) {
	var m models.UtilityConfigModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Save inserts or overwrites the config
func (r *GormUtilityConfigRepository) Save(ctx context.Context, c *utility.Config) error {
	return r.db.WithContext(ctx).Save(models.UtilityConfigModelFromDomain(c)).Error
}

var _ utility.ConfigRepository = (*GormUtilityConfigRepository)(nil)

// GormMeterReadingRepository implements utility.MeterReadingRepository using GORM
type GormMeterReadingRepository struct {
	db *gorm.DB
}

// NewGormMeterReadingRepository creates a new GormMeterReadingRepository
func NewGormMeterReadingRepository(db *gorm.DB) *GormMeterReadingRepository {
	return &GormMeterReadingRepository{db: db}
}

// FindLatest returns up to limit readings at or before atOrBefore, newest first
func (r *GormMeterReadingRepository) FindLatest(ctx context.Context, unitID, configID uuid.UUID, atOrBefore time.Time, limit int) ([]utility.MeterReading, error) {
	var rows []models.MeterReadingModel
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND utility_config_id = ? AND reading_date <= ?", unitID, configID, atOrBefore).
		Order("reading_date DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]utility.MeterReading, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save inserts the reading
func (r *GormMeterReadingRepository) Save(ctx context.Context, reading *utility.MeterReading) error {
	return r.db.WithContext(ctx).Create(models.MeterReadingModelFromDomain(reading)).Error
}

var _ utility.MeterReadingRepository = (*GormMeterReadingRepository)(nil)
