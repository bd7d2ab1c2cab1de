package drivers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/types"
)

// Candidate is an assignable driver with their distance from the search point.
type Candidate struct {
	Driver     models.Driver `json:"driver"`
	DistanceKm float64       `json:"distanceKm"`
}

// SearchConfig bounds available-driver searches.
type SearchConfig struct {
	RadiusKm      float64
	MaxCandidates int
}

// Service defines driver profile operations used by the API and dispatch.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*models.Driver, error)
	UpdateLocation(ctx context.Context, userID uuid.UUID, coords types.Coordinates) (*models.Driver, error)
	SetAvailability(ctx context.Context, userID uuid.UUID, available bool) (*models.Driver, error)
	FindAvailableNear(ctx context.Context, lat, lng float64) ([]Candidate, error)
	Track(ctx context.Context, driver *models.Driver)
	Untrack(ctx context.Context, driverID uuid.UUID)
}

type service struct {
	repo   Repository
	index  LocationIndex
	search SearchConfig
	logg   *logger.Logger
}

// NewService builds a driver service with the required dependencies.
func NewService(repo Repository, index LocationIndex, search SearchConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("drivers repository required")
	}
	if index == nil {
		return nil, fmt.Errorf("location index required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if search.RadiusKm <= 0 {
		search.RadiusKm = 10
	}
	if search.MaxCandidates <= 0 {
		search.MaxCandidates = 20
	}
	return &service{repo: repo, index: index, search: search, logg: logg}, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*models.Driver, error) {
	driver, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	return driver, nil
}

func (s *service) UpdateLocation(ctx context.Context, userID uuid.UUID, coords types.Coordinates) (*models.Driver, error) {
	if err := coords.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
	}
	driver, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLocation(ctx, driver.ID, coords.Latitude, coords.Longitude); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update driver location")
	}
	driver.CurrentLatitude = &coords.Latitude
	driver.CurrentLongitude = &coords.Longitude
	s.Track(ctx, driver)
	return driver, nil
}

func (s *service) SetAvailability(ctx context.Context, userID uuid.UUID, available bool) (*models.Driver, error) {
	driver, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if available {
		if !driver.IsVerified {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver is not verified")
		}
		busy, err := s.repo.HasActiveDelivery(ctx, driver.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active deliveries")
		}
		if busy {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver has an active delivery")
		}
	}
	if err := s.repo.SetAvailability(ctx, driver.ID, available); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update driver availability")
	}
	driver.IsAvailable = available
	if available {
		s.Track(ctx, driver)
	} else {
		s.Untrack(ctx, driver.ID)
	}
	return driver, nil
}

// FindAvailableNear returns assignable drivers nearest first. Index entries
// whose driver is no longer assignable are dropped from the index.
func (s *service) FindAvailableNear(ctx context.Context, lat, lng float64) ([]Candidate, error) {
	hits, err := s.index.Nearby(ctx, lat, lng, s.search.RadiusKm, s.search.MaxCandidates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search driver locations")
	}
	if len(hits) == 0 {
		return []Candidate{}, nil
	}

	ids := make([]uuid.UUID, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.DriverID)
	}
	rows, err := s.repo.FindAvailableByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load available drivers")
	}
	byID := make(map[uuid.UUID]models.Driver, len(rows))
	for _, d := range rows {
		byID[d.ID] = d
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, hit := range hits {
		driver, ok := byID[hit.DriverID]
		if !ok {
			s.Untrack(ctx, hit.DriverID)
			continue
		}
		candidates = append(candidates, Candidate{Driver: driver, DistanceKm: hit.DistanceKm})
	}
	return candidates, nil
}

// Track adds an assignable driver with a known location to the index.
// Index failures are logged; the store stays the source of truth.
func (s *service) Track(ctx context.Context, driver *models.Driver) {
	if driver == nil || !driver.IsAvailable || !driver.IsVerified {
		return
	}
	if driver.CurrentLatitude == nil || driver.CurrentLongitude == nil {
		return
	}
	if err := s.index.Track(ctx, driver.ID, *driver.CurrentLatitude, *driver.CurrentLongitude); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "driver_id", driver.ID.String()), "track driver location", err)
	}
}

func (s *service) Untrack(ctx context.Context, driverID uuid.UUID) {
	if err := s.index.Untrack(ctx, driverID); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "driver_id", driverID.String()), "untrack driver location", err)
	}
}
