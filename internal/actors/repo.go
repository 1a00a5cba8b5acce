package actors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
)

// Repository persists fulfillment actor profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	AgentForUser(ctx context.Context, userID uuid.UUID) (*models.DeliveryAgent, error)
	CoordinatorForUser(ctx context.Context, userID uuid.UUID) (*models.RegionalCoordinator, error)
	CreateAgent(ctx context.Context, agent *models.DeliveryAgent) error
	CreateCoordinator(ctx context.Context, coordinator *models.RegionalCoordinator) error
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role enums.ActorRole) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an actors repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) AgentForUser(ctx context.Context, userID uuid.UUID) (*models.DeliveryAgent, error) {
	var agent models.DeliveryAgent
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) CoordinatorForUser(ctx context.Context, userID uuid.UUID) (*models.RegionalCoordinator, error) {
	var coordinator models.RegionalCoordinator
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&coordinator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coordinator, nil
}

func (r *repository) CreateAgent(ctx context.Context, agent *models.DeliveryAgent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

func (r *repository) CreateCoordinator(ctx context.Context, coordinator *models.RegionalCoordinator) error {
	return r.db.WithContext(ctx).Create(coordinator).Error
}

func (r *repository) UpdateUserRole(ctx context.Context, userID uuid.UUID, role enums.ActorRole) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("role", role).Error
}
