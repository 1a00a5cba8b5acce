package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/agrilink/agrilink-backend/pkg/db/types"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

// RegionalCoordinator oversees delivery handoffs for a geographic region.
// ServiceAreas holds freeform locality labels (city, district, postal code)
// the resolver falls back to when geocoding leaves a target without
// coordinates.
type RegionalCoordinator struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID            `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Location     types.GeographyPoint `gorm:"column:location;type:geography(Point,4326)"`
	Address      *types.Address       `gorm:"column:address;type:address_t"`
	ServiceAreas dbtypes.StringArray  `gorm:"column:service_areas;type:text[]"`
	IsActive     bool                 `gorm:"column:is_active;not null;default:true"`
	RegisteredAt time.Time            `gorm:"column:registered_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (c *RegionalCoordinator) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
