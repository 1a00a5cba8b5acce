package actors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/internal/geo"
	"github.com/agrilink/agrilink-backend/pkg/db/models"
	dbtypes "github.com/agrilink/agrilink-backend/pkg/db/types"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// separationChecker is the slice of the assignment resolver coordinator
// admission depends on.
type separationChecker interface {
	CheckCoordinatorSeparation(ctx context.Context, lat, lng float64) error
}

// RegisterAgentInput enrolls an existing user as a delivery agent.
type RegisterAgentInput struct {
	UserID      uuid.UUID     `json:"-"`
	Address     types.Address `json:"address" validate:"required"`
	VehicleType *string       `json:"vehicle_type,omitempty" validate:"omitempty,max=60"`
}

// RegisterCoordinatorInput enrolls an existing user as a regional coordinator.
type RegisterCoordinatorInput struct {
	UserID       uuid.UUID     `json:"-"`
	Address      types.Address `json:"address" validate:"required"`
	ServiceAreas []string      `json:"service_areas,omitempty" validate:"omitempty,max=20,dive,min=1,max=120"`
}

// Service enrolls fulfillment actors. Identity creation stays with the
// external auth service; registration only attaches a profile and role.
type Service interface {
	RegisterAgent(ctx context.Context, input RegisterAgentInput) (*models.DeliveryAgent, error)
	RegisterCoordinator(ctx context.Context, input RegisterCoordinatorInput) (*models.RegionalCoordinator, error)
}

type service struct {
	tx         txRunner
	repo       Repository
	resolver   geo.Resolver
	separation separationChecker
	logger     *logger.Logger
}

// ServiceParams wires the registration dependencies.
type ServiceParams struct {
	Tx         txRunner
	Repo       Repository
	Resolver   geo.Resolver
	Separation separationChecker
	Logger     *logger.Logger
}

// NewService validates dependencies and constructs the registration service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("actors tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("actors repository is required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("geo resolver is required")
	}
	if params.Separation == nil {
		return nil, fmt.Errorf("separation checker is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("actors logger is required")
	}
	return &service{
		tx:         params.Tx,
		repo:       params.Repo,
		resolver:   params.Resolver,
		separation: params.Separation,
		logger:     params.Logger,
	}, nil
}

func (s *service) RegisterAgent(ctx context.Context, input RegisterAgentInput) (*models.DeliveryAgent, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	addr := s.locate(ctx, input.Address)

	var agent *models.DeliveryAgent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := s.ensureUser(ctx, repo, input.UserID); err != nil {
			return err
		}

		existing, err := repo.AgentForUser(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up agent profile")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user is already a delivery agent")
		}

		agent = &models.DeliveryAgent{
			UserID:      input.UserID,
			Location:    types.GeographyPoint{Lat: addr.Lat, Lng: addr.Lng},
			Address:     &addr,
			VehicleType: input.VehicleType,
			IsActive:    true,
		}
		if err := repo.CreateAgent(ctx, agent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create agent profile")
		}
		if err := repo.UpdateUserRole(ctx, input.UserID, enums.ActorRoleDeliveryAgent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user role")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"user_id":  input.UserID.String(),
		"agent_id": agent.ID.String(),
	})
	s.logger.Info(logCtx, "actors.agent.registered")
	return agent, nil
}

func (s *service) RegisterCoordinator(ctx context.Context, input RegisterCoordinatorInput) (*models.RegionalCoordinator, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	addr := s.locate(ctx, input.Address)
	if addr.Lat == 0 && addr.Lng == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeGeocoding, "coordinator address could not be located")
	}

	if err := s.separation.CheckCoordinatorSeparation(ctx, addr.Lat, addr.Lng); err != nil {
		return nil, err
	}

	var coordinator *models.RegionalCoordinator
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := s.ensureUser(ctx, repo, input.UserID); err != nil {
			return err
		}

		existing, err := repo.CoordinatorForUser(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up coordinator profile")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user is already a regional coordinator")
		}

		areas := make(dbtypes.StringArray, 0, len(input.ServiceAreas))
		for _, area := range input.ServiceAreas {
			if area = strings.TrimSpace(area); area != "" {
				areas = append(areas, area)
			}
		}
		coordinator = &models.RegionalCoordinator{
			UserID:       input.UserID,
			Location:     types.GeographyPoint{Lat: addr.Lat, Lng: addr.Lng},
			Address:      &addr,
			ServiceAreas: areas,
			IsActive:     true,
		}
		if err := repo.CreateCoordinator(ctx, coordinator); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coordinator profile")
		}
		if err := repo.UpdateUserRole(ctx, input.UserID, enums.ActorRoleRegionalCoordinator); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user role")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"user_id":        input.UserID.String(),
		"coordinator_id": coordinator.ID.String(),
	})
	s.logger.Info(logCtx, "actors.coordinator.registered")
	return coordinator, nil
}

// locate best-effort fills coordinates. Geocoding is unreliable by contract,
// so agents can register with locality-only addresses and still be matched
// through the postal/city fallback.
func (s *service) locate(ctx context.Context, addr types.Address) types.Address {
	located, err := s.resolver.Locate(ctx, addr)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "postal_code", addr.PostalCode), "actors.geocode.unavailable")
		return addr
	}
	return located
}

func (s *service) ensureUser(ctx context.Context, repo Repository, userID uuid.UUID) error {
	_, err := repo.GetUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return nil
}
