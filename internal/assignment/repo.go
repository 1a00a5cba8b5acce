package assignment

import (
	"context"

	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
)

// Repository loads assignable actors.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveAgents(ctx context.Context) ([]models.DeliveryAgent, error)
	ListActiveCoordinators(ctx context.Context) ([]models.RegionalCoordinator, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an assignment repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveAgents(ctx context.Context) ([]models.DeliveryAgent, error) {
	var agents []models.DeliveryAgent
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("registered_at ASC").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) ListActiveCoordinators(ctx context.Context) ([]models.RegionalCoordinator, error) {
	var coordinators []models.RegionalCoordinator
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("registered_at ASC").
		Find(&coordinators).Error; err != nil {
		return nil, err
	}
	return coordinators, nil
}
