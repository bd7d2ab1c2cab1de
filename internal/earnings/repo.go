package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packdrop-backend/internal/repo"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
)

// EarningList is a page of driver earnings.
type EarningList struct {
	Items      []models.DriverEarning `json:"items"`
	NextCursor string                 `json:"nextCursor,omitempty"`
}

// Repository persists driver earnings and the vendor posting guard.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindEarningByDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.DriverEarning, error)
	InsertEarningIfAbsent(ctx context.Context, earning *models.DriverEarning) (bool, error)
	MarkVendorEarningPosted(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
	ListDriverEarnings(ctx context.Context, driverID uuid.UUID, params pagination.Params) (*EarningList, error)
	UnpaidTotal(ctx context.Context, driverID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.DB(ctx).Where("id = ?", deliveryID).First(&delivery).Error; err != nil {
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

func (r *repository) FindEarningByDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.DriverEarning, error) {
	var earning models.DriverEarning
	if err := r.DB(ctx).Where("delivery_id = ?", deliveryID).First(&earning).Error; err != nil {
		return nil, err
	}
	return &earning, nil
}

// InsertEarningIfAbsent inserts the earning unless the delivery already has
// one. It reports whether this call created the row.
func (r *repository) InsertEarningIfAbsent(ctx context.Context, earning *models.DriverEarning) (bool, error) {
	if earning.ID == uuid.Nil {
		earning.ID = uuid.New()
	}
	res := r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "delivery_id"}}, DoNothing: true}).
		Create(earning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkVendorEarningPosted claims the vendor posting for an order. Only the
// first caller gets true.
func (r *repository) MarkVendorEarningPosted(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.DB(ctx).Model(&models.Order{}).
		Where("id = ? AND vendor_earning_posted_at IS NULL", orderID).
		Updates(map[string]any{"vendor_earning_posted_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListDriverEarnings(ctx context.Context, driverID uuid.UUID, params pagination.Params) (*EarningList, error) {
	rows, next, err := pagination.Find(r.DB(ctx).Where("driver_id = ?", driverID), "earning_date", params,
		func(e models.DriverEarning) pagination.Cursor { return pagination.Cursor{At: e.EarningDate, ID: e.ID} })
	if err != nil {
		return nil, err
	}
	return &EarningList{Items: rows, NextCursor: next}, nil
}

func (r *repository) UnpaidTotal(ctx context.Context, driverID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := r.DB(ctx).Model(&models.DriverEarning{}).
		Select("COALESCE(SUM(net_amount), 0) AS total").
		Where("driver_id = ? AND is_paid = ?", driverID, false).
		Scan(&row).Error
	return row.Total, err
}
