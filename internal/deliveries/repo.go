package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/repo"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

// Repository persists deliveries. Every status write is conditional on the
// status the caller read, so concurrent writers cannot both win.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, delivery *models.Delivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AssignPending(ctx context.Context, id, driverID uuid.UUID) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, updates map[string]any) (bool, error)
	SetProof(ctx context.Context, id uuid.UUID, reference string) error
	SetRating(ctx context.Context, id uuid.UUID, rating int, comment *string) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) error {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	return r.DB(ctx).Create(delivery).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.DB(ctx).Where("id = ?", id).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// AssignPending sets the driver on a delivery that is still pending.
func (r *repository) AssignPending(ctx context.Context, id, driverID uuid.UUID) (bool, error) {
	res := r.DB(ctx).Model(&models.Delivery{}).
		Where("id = ? AND status = ?", id, enums.DeliveryStatusPending).
		Updates(map[string]any{
			"status":     enums.DeliveryStatusAssigned,
			"driver_id":  driverID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionStatus writes to plus any extra columns when the row is still in from.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range updates {
		values[k] = v
	}
	res := r.DB(ctx).Model(&models.Delivery{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetProof(ctx context.Context, id uuid.UUID, reference string) error {
	return r.DB(ctx).Model(&models.Delivery{}).
		Where("id = ?", id).
		Updates(map[string]any{"proof_reference": reference, "updated_at": time.Now().UTC()}).Error
}

// SetRating stores the rating unless the delivery was already rated.
func (r *repository) SetRating(ctx context.Context, id uuid.UUID, rating int, comment *string) (bool, error) {
	res := r.DB(ctx).Model(&models.Delivery{}).
		Where("id = ? AND rating IS NULL", id).
		Updates(map[string]any{
			"rating":         rating,
			"rating_comment": comment,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
