package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/types"
)

// DeliveryAgent is a registered courier anchored to a home location.
type DeliveryAgent struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID            `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Location     types.GeographyPoint `gorm:"column:location;type:geography(Point,4326)"`
	Address      *types.Address       `gorm:"column:address;type:address_t"`
	VehicleType  *string              `gorm:"column:vehicle_type"`
	IsActive     bool                 `gorm:"column:is_active;not null;default:true"`
	RegisteredAt time.Time            `gorm:"column:registered_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (a *DeliveryAgent) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
