package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

// User represents the canonical identity entity.
type User struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Email       string          `gorm:"type:text;not null;uniqueIndex"`
	FirstName   string          `gorm:"column:first_name;not null"`
	LastName    string          `gorm:"column:last_name;not null"`
	Phone       *string         `gorm:"column:phone"`
	Role        enums.ActorRole `gorm:"column:role;type:actor_role;not null;default:'customer'"`
	Address     *types.Address  `gorm:"column:address;type:address_t"`
	ReferrerID  *uuid.UUID      `gorm:"column:referrer_id;type:uuid"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	LastLoginAt *time.Time      `gorm:"column:last_login_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller has not set one.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
