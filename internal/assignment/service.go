package assignment

import (
	"context"
	"fmt"
	"strings"

	"github.com/agrilink/agrilink-backend/internal/geo"
	"github.com/agrilink/agrilink-backend/pkg/config"
	"github.com/agrilink/agrilink-backend/pkg/db/models"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
)

// Target is the delivery destination the resolver searches around.
type Target struct {
	Lat        float64
	Lng        float64
	PostalCode string
	City       string
}

// HasCoordinates reports whether the target carries usable coordinates.
func (t Target) HasCoordinates() bool {
	return t.Lat != 0 || t.Lng != 0
}

// AgentMatch pairs the chosen agent with its distance from the target.
// DistanceKm is negative when the match came from the postal/city fallback.
type AgentMatch struct {
	Agent      models.DeliveryAgent
	DistanceKm float64
}

// CoordinatorMatch pairs the chosen coordinator with its distance.
type CoordinatorMatch struct {
	Coordinator models.RegionalCoordinator
	DistanceKm  float64
}

// Service resolves the nearest eligible actors for a delivery target.
type Service interface {
	FindAgent(ctx context.Context, target Target) (*AgentMatch, error)
	FindCoordinator(ctx context.Context, target Target) (*CoordinatorMatch, error)
	CheckCoordinatorSeparation(ctx context.Context, lat, lng float64) error
}

type service struct {
	repo   Repository
	cfg    config.AssignmentConfig
	logger *logger.Logger
}

// ServiceParams wires the resolver dependencies.
type ServiceParams struct {
	Repo   Repository
	Config config.AssignmentConfig
	Logger *logger.Logger
}

// NewService validates dependencies and constructs the resolver.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("assignment repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("assignment logger is required")
	}
	if params.Config.AgentRadiusKm <= 0 {
		return nil, fmt.Errorf("agent radius must be positive")
	}
	if params.Config.CoordinatorRadiusKm <= 0 {
		return nil, fmt.Errorf("coordinator radius must be positive")
	}
	return &service{repo: params.Repo, cfg: params.Config, logger: params.Logger}, nil
}

// FindAgent picks the closest active agent within the configured radius.
// Without target coordinates it falls back to postal code, then city,
// breaking ties by earliest registration.
func (s *service) FindAgent(ctx context.Context, target Target) (*AgentMatch, error) {
	agents, err := s.repo.ListActiveAgents(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active agents")
	}
	if len(agents) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAssignmentMiss, "no active delivery agents registered")
	}

	if target.HasCoordinates() {
		// Candidates that never geocoded sit at the zero point; they only
		// participate in the locality fallback.
		var best *AgentMatch
		for i := range agents {
			agent := agents[i]
			if agent.Location.Lat == 0 && agent.Location.Lng == 0 {
				continue
			}
			dist := geo.DistanceKm(target.Lat, target.Lng, agent.Location.Lat, agent.Location.Lng)
			if best == nil || dist < best.DistanceKm {
				best = &AgentMatch{Agent: agent, DistanceKm: dist}
			}
		}
		if best != nil {
			if best.DistanceKm <= s.cfg.AgentRadiusKm {
				return best, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeAssignmentMiss,
				fmt.Sprintf("no delivery agent within %.0f km of target", s.cfg.AgentRadiusKm)).
				WithDetails(map[string]any{"nearest_distance_km": best.DistanceKm})
		}
	}

	// Repository ordering makes the first textual match the earliest
	// registered one.
	if agent := matchAgentByLocality(agents, target); agent != nil {
		return &AgentMatch{Agent: *agent, DistanceKm: -1}, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeAssignmentMiss, "no delivery agent matches target locality")
}

// FindCoordinator picks the closest active coordinator within the configured
// coordinator radius. Without target coordinates it matches the target
// locality against coordinator addresses and their service-area labels.
func (s *service) FindCoordinator(ctx context.Context, target Target) (*CoordinatorMatch, error) {
	coordinators, err := s.repo.ListActiveCoordinators(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active coordinators")
	}
	if len(coordinators) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAssignmentMiss, "no active regional coordinators registered")
	}

	if target.HasCoordinates() {
		var best *CoordinatorMatch
		for i := range coordinators {
			coordinator := coordinators[i]
			if coordinator.Location.Lat == 0 && coordinator.Location.Lng == 0 {
				continue
			}
			dist := geo.DistanceKm(target.Lat, target.Lng, coordinator.Location.Lat, coordinator.Location.Lng)
			if best == nil || dist < best.DistanceKm {
				best = &CoordinatorMatch{Coordinator: coordinator, DistanceKm: dist}
			}
		}
		if best != nil {
			if best.DistanceKm <= s.cfg.CoordinatorRadiusKm {
				return best, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeAssignmentMiss,
				fmt.Sprintf("no regional coordinator within %.0f km of target", s.cfg.CoordinatorRadiusKm)).
				WithDetails(map[string]any{"nearest_distance_km": best.DistanceKm})
		}
	}

	if coordinator := matchCoordinatorByLocality(coordinators, target); coordinator != nil {
		return &CoordinatorMatch{Coordinator: *coordinator, DistanceKm: -1}, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeAssignmentMiss, "no regional coordinator matches target locality")
}

// CheckCoordinatorSeparation rejects a new coordinator location that sits
// inside another coordinator's territory.
func (s *service) CheckCoordinatorSeparation(ctx context.Context, lat, lng float64) error {
	if s.cfg.CoordinatorSeparationKm <= 0 {
		return nil
	}

	coordinators, err := s.repo.ListActiveCoordinators(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active coordinators")
	}

	for _, coordinator := range coordinators {
		dist := geo.DistanceKm(lat, lng, coordinator.Location.Lat, coordinator.Location.Lng)
		if dist < s.cfg.CoordinatorSeparationKm {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("coordinator %s already covers this area (%.1f km away, minimum separation %.0f km)",
					coordinator.ID, dist, s.cfg.CoordinatorSeparationKm))
		}
	}

	return nil
}

func matchAgentByLocality(agents []models.DeliveryAgent, target Target) *models.DeliveryAgent {
	if postal := strings.TrimSpace(target.PostalCode); postal != "" {
		for i := range agents {
			if addr := agents[i].Address; addr != nil && strings.EqualFold(addr.PostalCode, postal) {
				return &agents[i]
			}
		}
	}
	if city := strings.TrimSpace(target.City); city != "" {
		for i := range agents {
			if addr := agents[i].Address; addr != nil && strings.EqualFold(addr.City, city) {
				return &agents[i]
			}
		}
	}
	return nil
}

func matchCoordinatorByLocality(coordinators []models.RegionalCoordinator, target Target) *models.RegionalCoordinator {
	if postal := strings.TrimSpace(target.PostalCode); postal != "" {
		for i := range coordinators {
			if addr := coordinators[i].Address; addr != nil && strings.EqualFold(addr.PostalCode, postal) {
				return &coordinators[i]
			}
			if coversArea(coordinators[i].ServiceAreas, postal) {
				return &coordinators[i]
			}
		}
	}
	if city := strings.TrimSpace(target.City); city != "" {
		for i := range coordinators {
			if addr := coordinators[i].Address; addr != nil && strings.EqualFold(addr.City, city) {
				return &coordinators[i]
			}
			if coversArea(coordinators[i].ServiceAreas, city) {
				return &coordinators[i]
			}
		}
	}
	return nil
}

func coversArea(areas []string, label string) bool {
	for _, area := range areas {
		if strings.EqualFold(strings.TrimSpace(area), label) {
			return true
		}
	}
	return false
}
