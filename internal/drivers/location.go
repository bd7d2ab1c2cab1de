package drivers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/angelmondragon/packdrop-backend/pkg/redis"
)

const locationSetName = "drivers:available"

// NearbyDriver is a geo index hit.
type NearbyDriver struct {
	DriverID   uuid.UUID
	Latitude   float64
	Longitude  float64
	DistanceKm float64
}

// LocationIndex tracks where available drivers are.
type LocationIndex interface {
	Track(ctx context.Context, driverID uuid.UUID, lat, lng float64) error
	Untrack(ctx context.Context, driverID uuid.UUID) error
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]NearbyDriver, error)
}

type geoStore interface {
	GeoAdd(ctx context.Context, key, member string, lat, lng float64) error
	GeoRemove(ctx context.Context, key string, members ...string) error
	GeoSearch(ctx context.Context, key string, lat, lng, radiusKm float64, limit int) ([]redisclient.GeoPoint, error)
	GeoKey(name string) string
}

type redisLocationIndex struct {
	store geoStore
	key   string
}

// NewLocationIndex returns a LocationIndex backed by a redis geo set.
func NewLocationIndex(store geoStore) (LocationIndex, error) {
	if store == nil {
		return nil, fmt.Errorf("geo store required")
	}
	return &redisLocationIndex{store: store, key: store.GeoKey(locationSetName)}, nil
}

func (i *redisLocationIndex) Track(ctx context.Context, driverID uuid.UUID, lat, lng float64) error {
	return i.store.GeoAdd(ctx, i.key, driverID.String(), lat, lng)
}

func (i *redisLocationIndex) Untrack(ctx context.Context, driverID uuid.UUID) error {
	return i.store.GeoRemove(ctx, i.key, driverID.String())
}

func (i *redisLocationIndex) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]NearbyDriver, error) {
	points, err := i.store.GeoSearch(ctx, i.key, lat, lng, radiusKm, limit)
	if err != nil {
		return nil, err
	}
	out := make([]NearbyDriver, 0, len(points))
	for _, p := range points {
		id, err := uuid.Parse(p.Member)
		if err != nil {
			continue
		}
		out = append(out, NearbyDriver{
			DriverID:   id,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			DistanceKm: p.DistanceKm,
		})
	}
	return out, nil
}
