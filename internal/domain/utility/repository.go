package utility

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConfigRepository looks up utility billing rules
type ConfigRepository interface {
	// FindActiveForUnit returns active configs of the property that are property-wide
	// or scoped to the unit and whose effective window overlaps [start, end]
	FindActiveForUnit(ctx context.Context, propertyID, unitID uuid.UUID, start, end time.Time) ([]Config, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Config, error)
	Save(ctx context.Context, config *Config) error
}

// MeterReadingRepository looks up meter readings
type MeterReadingRepository interface {
	// FindLatest returns up to limit readings of the unit under the config taken at or
	// before the given time, newest first
	FindLatest(ctx context.Context, unitID, configID uuid.UUID, atOrBefore time.Time, limit int) ([]MeterReading, error)
	Save(ctx context.Context, reading *MeterReading) error
}
