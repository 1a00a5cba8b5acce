package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/config"
	"github.com/agrilink/agrilink-backend/pkg/db/models"
	dbtypes "github.com/agrilink/agrilink-backend/pkg/db/types"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

type fakeRepository struct {
	agents       []models.DeliveryAgent
	coordinators []models.RegionalCoordinator
	err          error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) ListActiveAgents(ctx context.Context) ([]models.DeliveryAgent, error) {
	return f.agents, f.err
}

func (f *fakeRepository) ListActiveCoordinators(ctx context.Context) ([]models.RegionalCoordinator, error) {
	return f.coordinators, f.err
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Config: config.AssignmentConfig{AgentRadiusKm: 30, CoordinatorRadiusKm: 50, CoordinatorSeparationKm: 50},
		Logger: logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func agent(lat, lng float64, registered time.Time, addr *types.Address) models.DeliveryAgent {
	return models.DeliveryAgent{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Location:     types.GeographyPoint{Lat: lat, Lng: lng},
		Address:      addr,
		IsActive:     true,
		RegisteredAt: registered,
	}
}

func TestFindAgentPicksNearestWithinRadius(t *testing.T) {
	now := time.Now()
	near := agent(12.98, 77.60, now, nil)
	far := agent(13.20, 77.90, now, nil)
	repo := &fakeRepository{agents: []models.DeliveryAgent{far, near}}

	svc := newTestService(t, repo)
	match, err := svc.FindAgent(context.Background(), Target{Lat: 12.9716, Lng: 77.5946})
	if err != nil {
		t.Fatalf("find agent: %v", err)
	}
	if match.Agent.ID != near.ID {
		t.Fatalf("expected nearest agent, got %s", match.Agent.ID)
	}
	if match.DistanceKm <= 0 || match.DistanceKm > 30 {
		t.Fatalf("unexpected distance %v", match.DistanceKm)
	}
}

func TestFindAgentRespectsRadius(t *testing.T) {
	// Roughly 128 km away from the target.
	outOfRange := agent(12.2958, 76.6394, time.Now(), nil)
	repo := &fakeRepository{agents: []models.DeliveryAgent{outOfRange}}

	svc := newTestService(t, repo)
	_, err := svc.FindAgent(context.Background(), Target{Lat: 12.9716, Lng: 77.5946})
	if !pkgerrors.IsCode(err, pkgerrors.CodeAssignmentMiss) {
		t.Fatalf("expected assignment miss, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok {
		t.Fatalf("expected nearest-distance details, got %T", pkgerrors.As(err).Details())
	}
	nearest, ok := details["nearest_distance_km"].(float64)
	if !ok || nearest < 100 {
		t.Fatalf("expected best-effort nearest distance, got %v", details)
	}
}

func TestFindAgentTieBreaksByRegistration(t *testing.T) {
	now := time.Now()
	first := agent(12.98, 77.60, now.Add(-2*time.Hour), nil)
	second := agent(12.98, 77.60, now.Add(-1*time.Hour), nil)
	// Repository returns candidates ordered by registration.
	repo := &fakeRepository{agents: []models.DeliveryAgent{first, second}}

	svc := newTestService(t, repo)
	match, err := svc.FindAgent(context.Background(), Target{Lat: 12.9716, Lng: 77.5946})
	if err != nil {
		t.Fatalf("find agent: %v", err)
	}
	if match.Agent.ID != first.ID {
		t.Fatalf("expected earliest registered agent to win the tie")
	}
}

func TestFindAgentFallsBackToPostalThenCity(t *testing.T) {
	now := time.Now()
	postalMatch := agent(0, 0, now, &types.Address{Line1: "x", City: "Mysuru", State: "KA", PostalCode: "500001", Lat: 1, Lng: 1})
	cityMatch := agent(0, 0, now, &types.Address{Line1: "y", City: "Bengaluru", State: "KA", PostalCode: "560099", Lat: 1, Lng: 1})
	repo := &fakeRepository{agents: []models.DeliveryAgent{cityMatch, postalMatch}}

	svc := newTestService(t, repo)

	match, err := svc.FindAgent(context.Background(), Target{PostalCode: "500001", City: "Bengaluru"})
	if err != nil {
		t.Fatalf("find agent: %v", err)
	}
	if match.Agent.ID != postalMatch.ID {
		t.Fatalf("postal code match should beat city match")
	}
	if match.DistanceKm >= 0 {
		t.Fatalf("fallback match should carry sentinel distance, got %v", match.DistanceKm)
	}

	match, err = svc.FindAgent(context.Background(), Target{PostalCode: "999999", City: "Bengaluru"})
	if err != nil {
		t.Fatalf("find agent: %v", err)
	}
	if match.Agent.ID != cityMatch.ID {
		t.Fatalf("expected city fallback when postal code misses")
	}
}

func TestFindAgentEmptyPool(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})
	_, err := svc.FindAgent(context.Background(), Target{Lat: 1, Lng: 1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeAssignmentMiss) {
		t.Fatalf("expected assignment miss for empty pool, got %v", err)
	}
}

func TestFindAgentRepositoryError(t *testing.T) {
	svc := newTestService(t, &fakeRepository{err: errors.New("db down")})
	_, err := svc.FindAgent(context.Background(), Target{Lat: 1, Lng: 1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func coordinator(lat, lng float64, addr *types.Address, areas ...string) models.RegionalCoordinator {
	return models.RegionalCoordinator{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Location:     types.GeographyPoint{Lat: lat, Lng: lng},
		Address:      addr,
		ServiceAreas: dbtypes.StringArray(areas),
		IsActive:     true,
		RegisteredAt: time.Now(),
	}
}

func TestFindCoordinatorPicksNearestWithinRadius(t *testing.T) {
	nearer := coordinator(12.98, 77.60, nil)
	farther := coordinator(28.6139, 77.2090, nil)
	repo := &fakeRepository{coordinators: []models.RegionalCoordinator{farther, nearer}}

	svc := newTestService(t, repo)
	match, err := svc.FindCoordinator(context.Background(), Target{Lat: 12.9716, Lng: 77.5946})
	if err != nil {
		t.Fatalf("find coordinator: %v", err)
	}
	if match.Coordinator.ID != nearer.ID {
		t.Fatalf("expected nearest coordinator, got %s", match.Coordinator.ID)
	}
}

func TestFindCoordinatorRespectsRadius(t *testing.T) {
	// Mysuru is roughly 128 km from the Bengaluru target, well beyond 50 km.
	outOfRange := coordinator(12.2958, 76.6394, nil)
	repo := &fakeRepository{coordinators: []models.RegionalCoordinator{outOfRange}}

	svc := newTestService(t, repo)
	_, err := svc.FindCoordinator(context.Background(), Target{Lat: 12.9716, Lng: 77.5946})
	if !pkgerrors.IsCode(err, pkgerrors.CodeAssignmentMiss) {
		t.Fatalf("expected assignment miss beyond coordinator radius, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok {
		t.Fatalf("expected nearest-distance details, got %T", pkgerrors.As(err).Details())
	}
	if nearest, ok := details["nearest_distance_km"].(float64); !ok || nearest < 100 {
		t.Fatalf("expected best-effort nearest distance, got %v", details)
	}
}

func TestFindCoordinatorServiceAreaFallback(t *testing.T) {
	kochi := coordinator(0, 0, &types.Address{City: "Kochi", PostalCode: "682001"}, "Ernakulam", "683542")
	repo := &fakeRepository{coordinators: []models.RegionalCoordinator{kochi}}
	svc := newTestService(t, repo)

	// Target postal code matching a service-area label, not the home address.
	match, err := svc.FindCoordinator(context.Background(), Target{PostalCode: "683542", City: "Angamaly"})
	if err != nil {
		t.Fatalf("find coordinator: %v", err)
	}
	if match.Coordinator.ID != kochi.ID {
		t.Fatalf("expected service-area label match, got %s", match.Coordinator.ID)
	}
	if match.DistanceKm >= 0 {
		t.Fatalf("fallback match should carry sentinel distance, got %v", match.DistanceKm)
	}

	// City label, case-insensitive.
	if _, err := svc.FindCoordinator(context.Background(), Target{City: "ernakulam"}); err != nil {
		t.Fatalf("expected city label fallback: %v", err)
	}

	if _, err := svc.FindCoordinator(context.Background(), Target{City: "Thrissur"}); !pkgerrors.IsCode(err, pkgerrors.CodeAssignmentMiss) {
		t.Fatalf("expected miss for uncovered locality, got %v", err)
	}
}

func TestFindCoordinatorSkipsUnlocatedCandidates(t *testing.T) {
	unlocated := coordinator(0, 0, &types.Address{City: "Kochi"})
	located := coordinator(12.98, 77.60, nil)
	repo := &fakeRepository{coordinators: []models.RegionalCoordinator{unlocated, located}}

	svc := newTestService(t, repo)
	match, err := svc.FindCoordinator(context.Background(), Target{Lat: 12.9716, Lng: 77.5946})
	if err != nil {
		t.Fatalf("find coordinator: %v", err)
	}
	if match.Coordinator.ID != located.ID {
		t.Fatalf("zero-point candidate must not win the distance scan")
	}
}

func TestFindAgentSkipsUnlocatedCandidates(t *testing.T) {
	now := time.Now()
	// The zero point is ~9500 km from Bengaluru; an unlocated candidate must
	// neither win nor drag the nearest-distance report there.
	unlocated := agent(0, 0, now, &types.Address{City: "Kochi", PostalCode: "682001"})
	located := agent(12.98, 77.60, now, nil)
	repo := &fakeRepository{agents: []models.DeliveryAgent{unlocated, located}}

	svc := newTestService(t, repo)
	match, err := svc.FindAgent(context.Background(), Target{Lat: 12.9716, Lng: 77.5946})
	if err != nil {
		t.Fatalf("find agent: %v", err)
	}
	if match.Agent.ID != located.ID {
		t.Fatalf("zero-point candidate must not win the distance scan")
	}

	// When nobody geocoded, a located target still falls back to locality.
	repo.agents = []models.DeliveryAgent{unlocated}
	match, err = svc.FindAgent(context.Background(), Target{Lat: 9.9312, Lng: 76.2673, PostalCode: "682001"})
	if err != nil {
		t.Fatalf("find agent: %v", err)
	}
	if match.Agent.ID != unlocated.ID || match.DistanceKm >= 0 {
		t.Fatalf("expected locality fallback for an all-unlocated pool, got %+v", match)
	}
}

func TestCheckCoordinatorSeparation(t *testing.T) {
	existing := models.RegionalCoordinator{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Location:     types.GeographyPoint{Lat: 12.9716, Lng: 77.5946},
		IsActive:     true,
		RegisteredAt: time.Now(),
	}
	repo := &fakeRepository{coordinators: []models.RegionalCoordinator{existing}}
	svc := newTestService(t, repo)

	// Within 50 km of the existing coordinator.
	err := svc.CheckCoordinatorSeparation(context.Background(), 12.98, 77.60)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict inside separation radius, got %v", err)
	}

	// Mysuru is well beyond 50 km.
	if err := svc.CheckCoordinatorSeparation(context.Background(), 12.2958, 76.6394); err != nil {
		t.Fatalf("expected distant location to be allowed: %v", err)
	}
}

func TestCheckCoordinatorSeparationEmptyPool(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})
	if err := svc.CheckCoordinatorSeparation(context.Background(), 1, 1); err != nil {
		t.Fatalf("empty pool must allow registration: %v", err)
	}
}
