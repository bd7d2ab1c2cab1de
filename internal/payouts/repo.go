package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/repo"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/pagination"
)

// ListFilter narrows the admin payout request listing.
type ListFilter struct {
	Status   *enums.PayoutRequestStatus
	UserType *enums.PayoutUserType
}

// RequestList is a cursor page of payout requests.
type RequestList struct {
	Items      []models.PayoutRequest `json:"items"`
	NextCursor string                 `json:"nextCursor,omitempty"`
}

// Repository persists payout requests and the earning settlement flags they drive.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PayoutRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	FindOpen(ctx context.Context, userID uuid.UUID, userType enums.PayoutUserType) (*models.PayoutRequest, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.PayoutRequestStatus, updates map[string]any) (bool, error)
	LinkTransaction(ctx context.Context, id, transactionID uuid.UUID) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*RequestList, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error)
	UnpaidEarningIDs(ctx context.Context, driverID uuid.UUID) ([]uuid.UUID, error)
	SettleEarnings(ctx context.Context, ids []uuid.UUID, reference string, at time.Time) error
	UnsettleEarnings(ctx context.Context, reference string) error
}

type repository struct {
	repo.Base
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, request *models.PayoutRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return r.DB(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	if err := r.Locked(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindOpen(ctx context.Context, userID uuid.UUID, userType enums.PayoutUserType) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	err := r.DB(ctx).
		Where("user_id = ? AND user_type = ? AND status IN ?", userID, userType, enums.OpenPayoutStatuses).
		Order("created_at DESC").
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// TransitionStatus moves a request only if it is still in from. It reports
// false when another writer got there first.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.PayoutRequestStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.DB(ctx).Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) LinkTransaction(ctx context.Context, id, transactionID uuid.UUID) error {
	res := r.DB(ctx).Model(&models.PayoutRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{"transaction_id": transactionID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) (*RequestList, error) {
	q := r.DB(ctx).Model(&models.PayoutRequest{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.UserType != nil {
		q = q.Where("user_type = ?", *filter.UserType)
	}
	rows, next, err := pagination.Find(q, "created_at", params,
		func(p models.PayoutRequest) pagination.Cursor { return pagination.Cursor{At: p.CreatedAt, ID: p.ID} })
	if err != nil {
		return nil, err
	}
	return &RequestList{Items: rows, NextCursor: next}, nil
}

func (r *repository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).Model(&models.PayoutRequest{}).
		Where("status = ? AND created_at < ?", enums.PayoutStatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) UnpaidEarningIDs(ctx context.Context, driverID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).Model(&models.DriverEarning{}).
		Where("driver_id = ? AND is_paid = ?", driverID, false).
		Order("earning_date ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) SettleEarnings(ctx context.Context, ids []uuid.UUID, reference string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB(ctx).Model(&models.DriverEarning{}).
		Where("id IN ? AND is_paid = ?", ids, false).
		Updates(map[string]any{
			"is_paid":         true,
			"paid_date":       at,
			"transaction_ref": reference,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// UnsettleEarnings reopens the earnings a failed transfer had marked paid.
func (r *repository) UnsettleEarnings(ctx context.Context, reference string) error {
	return r.DB(ctx).Model(&models.DriverEarning{}).
		Where("transaction_ref = ?", reference).
		Updates(map[string]any{
			"is_paid":         false,
			"paid_date":       nil,
			"transaction_ref": nil,
			"updated_at":      time.Now().UTC(),
		}).Error
}
