package geo

import (
	"context"
	"fmt"

	"github.com/agrilink/agrilink-backend/pkg/geocode"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

// Geocoder resolves a structured address into coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, addr types.Address) (geocode.Location, error)
}

// Resolver fills in missing coordinates on addresses before distance math.
type Resolver interface {
	Locate(ctx context.Context, addr types.Address) (types.Address, error)
}

type resolver struct {
	geocoder Geocoder
	logger   *logger.Logger
}

// ResolverParams wires the resolver dependencies.
type ResolverParams struct {
	Geocoder Geocoder
	Logger   *logger.Logger
}

// NewResolver validates dependencies and constructs the resolver.
func NewResolver(params ResolverParams) (Resolver, error) {
	if params.Geocoder == nil {
		return nil, fmt.Errorf("geo: geocoder is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("geo: logger is required")
	}
	return &resolver{geocoder: params.Geocoder, logger: params.Logger}, nil
}

func (r *resolver) Locate(ctx context.Context, addr types.Address) (types.Address, error) {
	if addr.Lat != 0 || addr.Lng != 0 {
		return addr, nil
	}

	loc, err := r.geocoder.Resolve(ctx, addr)
	if err != nil {
		return addr, err
	}

	addr.Lat = loc.Lat
	addr.Lng = loc.Lng
	if addr.District == nil && loc.District != "" {
		district := loc.District
		addr.District = &district
	}
	// The geocoder's normalized names only fill gaps, user input wins.
	if addr.City == "" {
		addr.City = loc.City
	}
	if addr.State == "" {
		addr.State = loc.State
	}
	return addr, nil
}
