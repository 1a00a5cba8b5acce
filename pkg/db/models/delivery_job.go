package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

// DeliveryJob is the fulfillment leg created at settlement. Agent and
// coordinator stay nullable: an order can settle with no actor in range and
// be assigned later by hand.
type DeliveryJob struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	AgentID       *uuid.UUID              `gorm:"column:agent_id;type:uuid;index"`
	CoordinatorID *uuid.UUID              `gorm:"column:coordinator_id;type:uuid;index"`
	Status        enums.DeliveryJobStatus `gorm:"column:status;type:delivery_job_status;not null;default:'requested'"`
	Fee           decimal.Decimal         `gorm:"column:fee;type:numeric(12,2);not null;default:0"`
	DistanceKm    *float64                `gorm:"column:distance_km"`
	Pickup        *types.Address          `gorm:"column:pickup;type:address_t"`
	Dropoff       *types.Address          `gorm:"column:dropoff;type:address_t"`
	AcceptedAt    *time.Time              `gorm:"column:accepted_at"`
	PickedUpAt    *time.Time              `gorm:"column:picked_up_at"`
	DeliveredAt   *time.Time              `gorm:"column:delivered_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (j *DeliveryJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
