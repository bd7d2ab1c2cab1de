package drivers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/repo"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

// Repository persists driver profiles and their availability.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Driver, error)
	FindAvailableByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Driver, error)
	ClaimForAssignment(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error
	HasActiveDelivery(ctx context.Context, id uuid.UUID) (bool, error)
	RecomputeRating(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	repo.Base
}

// NewRepository builds a drivers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	if err := r.DB(ctx).Where("id = ?", id).First(&driver).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	if err := r.DB(ctx).Where("user_id = ?", userID).First(&driver).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *repository) FindAvailableByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Driver, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var drivers []models.Driver
	err := r.DB(ctx).
		Where("id IN ?", ids).
		Where("is_available = ? AND is_verified = ?", true, true).
		Find(&drivers).Error
	return drivers, err
}

// ClaimForAssignment flips an available, verified driver to unavailable.
// It reports false when the driver did not match, leaving the caller to
// classify why.
func (r *repository) ClaimForAssignment(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).Model(&models.Driver{}).
		Where("id = ? AND is_available = ? AND is_verified = ?", id, true, true).
		Updates(map[string]any{"is_available": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Release(ctx context.Context, id uuid.UUID) error {
	return r.SetAvailability(ctx, id, true)
}

func (r *repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	res := r.DB(ctx).Model(&models.Driver{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_available": available, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	res := r.DB(ctx).Model(&models.Driver{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_latitude":  lat,
			"current_longitude": lng,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

var terminalDeliveryStatuses = []enums.DeliveryStatus{
	enums.DeliveryStatusDelivered,
	enums.DeliveryStatusFailed,
	enums.DeliveryStatusCancelled,
}

func (r *repository) HasActiveDelivery(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Delivery{}).
		Where("driver_id = ? AND status NOT IN ?", id, terminalDeliveryStatuses).
		Count(&count).Error
	return count > 0, err
}

// RecomputeRating sets the driver's rating to the average of rated deliveries.
func (r *repository) RecomputeRating(ctx context.Context, id uuid.UUID) error {
	avg := r.DB(ctx).Model(&models.Delivery{}).
		Select("COALESCE(ROUND(AVG(rating), 2), 0)").
		Where("driver_id = ? AND rating IS NOT NULL", id)
	return r.DB(ctx).Model(&models.Driver{}).
		Where("id = ?", id).
		Updates(map[string]any{"rating": avg, "updated_at": time.Now().UTC()}).Error
}
