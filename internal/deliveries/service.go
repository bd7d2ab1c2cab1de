package deliveries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/drivers"
	"github.com/angelmondragon/packdrop-backend/internal/earnings"
	"github.com/angelmondragon/packdrop-backend/internal/orders"
	"github.com/angelmondragon/packdrop-backend/internal/vendors"
	pkgdb "github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the delivery lifecycle.
type Service interface {
	CreateDelivery(ctx context.Context, input CreateDeliveryInput) (*models.Delivery, error)
	AssignDriver(ctx context.Context, input AssignDriverInput) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Delivery, error)
	SubmitProof(ctx context.Context, input SubmitProofInput) (*models.Delivery, error)
	RateDelivery(ctx context.Context, input RateDeliveryInput) (*models.Delivery, error)
	GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	AvailableDrivers(ctx context.Context, deliveryID uuid.UUID) (*AvailableDriversResult, error)
}

// Deps bundles the collaborators of the delivery service.
type Deps struct {
	Repo     Repository
	Drivers  drivers.Repository
	Dispatch drivers.Service
	Vendors  vendors.Repository
	Orders   orders.Service
	Earnings earnings.Service
	Outbox   outbox.Emitter
	Tx       txRunner
	Logger   *logger.Logger
	Metrics  *metrics.DomainMetrics
}

type service struct {
	repo     Repository
	drivers  drivers.Repository
	dispatch drivers.Service
	vendors  vendors.Repository
	orders   orders.Service
	earnings earnings.Service
	outbox   outbox.Emitter
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.DomainMetrics
	now      func() time.Time
}

// NewService builds a delivery service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("deliveries repository required")
	case deps.Drivers == nil:
		return nil, fmt.Errorf("drivers repository required")
	case deps.Dispatch == nil:
		return nil, fmt.Errorf("drivers service required")
	case deps.Vendors == nil:
		return nil, fmt.Errorf("vendors repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case deps.Earnings == nil:
		return nil, fmt.Errorf("earnings service required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     deps.Repo,
		drivers:  deps.Drivers,
		dispatch: deps.Dispatch,
		vendors:  deps.Vendors,
		orders:   deps.Orders,
		earnings: deps.Earnings,
		outbox:   deps.Outbox,
		tx:       deps.Tx,
		logg:     deps.Logger,
		metrics:  deps.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateDelivery(ctx context.Context, input CreateDeliveryInput) (*models.Delivery, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := input.Pickup.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pickup coordinates")
	}
	if err := input.Dropoff.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dropoff coordinates")
	}
	if input.DistanceKm.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distance cannot be negative")
	}
	if input.DeliveryFee != nil && input.DeliveryFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee cannot be negative")
	}

	var created *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.Actor.Role == enums.UserRoleVendor {
			vendor, err := s.vendors.WithTx(tx).FindByUserID(ctx, input.Actor.UserID)
			if err != nil || vendor.ID != order.VendorID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
			}
		}
		if order.Status != enums.OrderStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeValidation, "order is not confirmed").
				WithDetails(map[string]any{"status": order.Status})
		}

		fee := order.DeliveryFee
		if input.DeliveryFee != nil {
			fee = *input.DeliveryFee
		}
		delivery := &models.Delivery{
			ID:               uuid.New(),
			OrderID:          order.ID,
			Status:           enums.DeliveryStatusPending,
			PickupLatitude:   input.Pickup.Latitude,
			PickupLongitude:  input.Pickup.Longitude,
			DropoffLatitude:  input.Dropoff.Latitude,
			DropoffLongitude: input.Dropoff.Longitude,
			DistanceKm:       input.DistanceKm.Round(2),
			DeliveryFee:      fee.Round(2),
		}
		if err := repo.Create(ctx, delivery); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeValidation, "order already has an active delivery")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}

		created = delivery
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryCreated,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.DeliveryCreatedEvent{
				DeliveryID:  delivery.ID,
				OrderID:     order.ID,
				DeliveryFee: delivery.DeliveryFee,
				DistanceKm:  delivery.DistanceKm,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"delivery_id": created.ID.String(),
		"order_id":    created.OrderID.String(),
	}), "delivery created")
	return created, nil
}

// AssignDriver moves a pending delivery to assigned and takes the driver off
// the available pool in one transaction. Losing either conditional update
// rolls both back.
func (s *service) AssignDriver(ctx context.Context, input AssignDriverInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil || input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id and driver id required")
	}
	if input.Actor.Role == enums.UserRoleDriver {
		self, err := s.drivers.FindByUserID(ctx, input.Actor.UserID)
		if err != nil || self.ID != input.DriverID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "drivers may only assign themselves")
		}
	}

	var assigned *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		driverRepo := s.drivers.WithTx(tx)

		ok, err := repo.AssignPending(ctx, input.DeliveryID, input.DriverID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign delivery")
		}
		if !ok {
			return s.classifyDeliveryMiss(ctx, repo, input.DeliveryID)
		}

		claimed, err := driverRepo.ClaimForAssignment(ctx, input.DriverID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim driver")
		}
		if !claimed {
			return classifyDriverMiss(ctx, driverRepo, input.DriverID)
		}

		delivery, err := repo.FindByID(ctx, input.DeliveryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload delivery")
		}
		driver, err := driverRepo.FindByID(ctx, input.DriverID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload driver")
		}
		assigned = delivery

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryAssigned,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.DeliveryAssignedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				DriverID:   driver.ID,
				AssignedAt: s.now(),
			},
		}); err != nil {
			return err
		}
		return s.notify(ctx, tx, delivery.ID, payloads.NotificationRequestedEvent{
			RecipientUserID: driver.UserID,
			RecipientRole:   enums.UserRoleDriver,
			Type:            payloads.NotificationDeliveryAssigned,
			Title:           "New delivery assigned",
			Body:            "You have been assigned a new delivery.",
			Data:            map[string]any{"deliveryId": delivery.ID.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.dispatch.Untrack(ctx, input.DriverID)
	s.metrics.IncDeliveryTransition(string(enums.DeliveryStatusAssigned))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"delivery_id": assigned.ID.String(),
		"driver_id":   input.DriverID.String(),
	}), "delivery assigned")
	return assigned, nil
}

func (s *service) classifyDeliveryMiss(ctx context.Context, repo Repository, id uuid.UUID) error {
	delivery, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "delivery is no longer pending").
		WithDetails(map[string]any{"status": delivery.Status})
}

func classifyDriverMiss(ctx context.Context, repo drivers.Repository, id uuid.UUID) error {
	driver, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	if !driver.IsVerified {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver is not verified")
	}
	return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "driver is not available")
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid delivery status %q", input.Status)
	}
	if input.Status == enums.DeliveryStatusAssigned {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use driver assignment to assign a delivery")
	}
	if input.Location != nil {
		if err := input.Location.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
		}
	}

	var (
		updated  *models.Delivery
		from     enums.DeliveryStatus
		released *models.Driver
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		driverRepo := s.drivers.WithTx(tx)

		delivery, err := repo.FindByID(ctx, input.DeliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if err := s.authorizeStatusChange(ctx, driverRepo, delivery, input.Actor); err != nil {
			return err
		}
		from = delivery.Status
		if !CanTransition(from, input.Status) {
			return invalidTransition(from, input.Status)
		}

		now := s.now()
		extra := map[string]any{}
		switch input.Status {
		case enums.DeliveryStatusPickedUp:
			extra["picked_up_at"] = now
			delivery.PickedUpAt = &now
		case enums.DeliveryStatusDelivered:
			extra["delivered_at"] = now
			delivery.DeliveredAt = &now
		case enums.DeliveryStatusFailed:
			extra["failed_at"] = now
			delivery.FailedAt = &now
		case enums.DeliveryStatusCancelled:
			extra["cancelled_at"] = now
			delivery.CancelledAt = &now
		}
		if loc := input.Location; loc != nil {
			extra["current_latitude"] = loc.Latitude
			extra["current_longitude"] = loc.Longitude
			delivery.CurrentLatitude = &loc.Latitude
			delivery.CurrentLongitude = &loc.Longitude
		}

		moved, err := repo.TransitionStatus(ctx, delivery.ID, from, input.Status, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery status changed concurrently").
				WithDetails(map[string]any{"from": from, "to": input.Status})
		}
		delivery.Status = input.Status

		if input.Location != nil && delivery.DriverID != nil {
			if err := driverRepo.UpdateLocation(ctx, *delivery.DriverID, input.Location.Latitude, input.Location.Longitude); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update driver location")
			}
		}

		if err := s.applySideEffects(ctx, tx, delivery); err != nil {
			return err
		}

		releases := delivery.DriverID != nil && holdsDriver(from) && !holdsDriver(input.Status)
		if releases {
			if err := driverRepo.Release(ctx, *delivery.DriverID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release driver")
			}
			released, err = driverRepo.FindByID(ctx, *delivery.DriverID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload driver")
			}
		}

		order, err := repo.FindOrder(ctx, delivery.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryStatusChanged,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.DeliveryStatusChangedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				DriverID:   delivery.DriverID,
				From:       from,
				To:         input.Status,
				Latitude:   delivery.CurrentLatitude,
				Longitude:  delivery.CurrentLongitude,
				ChangedAt:  now,
			},
		}); err != nil {
			return err
		}
		if err := s.notify(ctx, tx, delivery.ID, payloads.NotificationRequestedEvent{
			RecipientUserID: order.CustomerID,
			RecipientRole:   enums.UserRoleCustomer,
			Type:            payloads.NotificationDeliveryStatus,
			Title:           "Delivery update",
			Body:            "Your delivery is now " + strings.ReplaceAll(string(input.Status), "_", " ") + ".",
			Data:            map[string]any{"deliveryId": delivery.ID.String(), "status": input.Status},
		}); err != nil {
			return err
		}

		updated = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}

	if released != nil {
		s.dispatch.Track(ctx, released)
	}
	s.metrics.IncDeliveryTransition(string(input.Status))
	logCtx := s.logg.WithDeliveryID(ctx, updated.ID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"from": from,
		"to":   input.Status,
	}), "delivery status changed")
	return updated, nil
}

func (s *service) authorizeStatusChange(ctx context.Context, driverRepo drivers.Repository, delivery *models.Delivery, actor Actor) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleDriver:
		driver, err := driverRepo.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "driver profile not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
		}
		if delivery.DriverID != nil && *delivery.DriverID == driver.ID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "delivery is not assigned to caller")
}

// applySideEffects runs the order and earnings updates tied to entering the
// delivery's current status, inside the caller's transaction.
func (s *service) applySideEffects(ctx context.Context, tx *gorm.DB, delivery *models.Delivery) error {
	switch delivery.Status {
	case enums.DeliveryStatusPickedUp:
		return s.orders.SetStatus(ctx, tx, delivery.OrderID, enums.OrderStatusInTransit)
	case enums.DeliveryStatusDelivered:
		if err := s.orders.SetStatus(ctx, tx, delivery.OrderID, enums.OrderStatusDelivered); err != nil {
			return err
		}
		if _, err := s.earnings.CalculateDeliveryEarnings(ctx, tx, delivery.ID); err != nil {
			return err
		}
		return s.earnings.CalculateOrderEarnings(ctx, tx, delivery.OrderID)
	case enums.DeliveryStatusCancelled:
		return s.orders.SetStatus(ctx, tx, delivery.OrderID, enums.OrderStatusConfirmed)
	}
	return nil
}

func invalidTransition(from, to enums.DeliveryStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot move delivery from %s to %s", from, to).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": AllowedTransitions(from),
		})
}

func (s *service) SubmitProof(ctx context.Context, input SubmitProofInput) (*models.Delivery, error) {
	reference := strings.TrimSpace(input.ProofReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof reference required")
	}
	delivery, err := s.GetDelivery(ctx, input.DeliveryID)
	if err != nil {
		return nil, err
	}
	driver, err := s.drivers.FindByUserID(ctx, input.DriverUserID)
	if err != nil || delivery.DriverID == nil || *delivery.DriverID != driver.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery is not assigned to caller")
	}
	if delivery.Status != enums.DeliveryStatusArrived && delivery.Status != enums.DeliveryStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "proof can only be submitted on arrival or delivery").
			WithDetails(map[string]any{"status": delivery.Status})
	}
	if err := s.repo.SetProof(ctx, delivery.ID, reference); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store proof reference")
	}
	delivery.ProofReference = &reference
	return delivery, nil
}

func (s *service) RateDelivery(ctx context.Context, input RateDeliveryInput) (*models.Delivery, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	var rated *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByID(ctx, input.DeliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if delivery.Status != enums.DeliveryStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only delivered deliveries can be rated")
		}
		order, err := repo.FindOrder(ctx, delivery.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CustomerID != input.CustomerUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "delivery does not belong to caller")
		}

		ok, err := repo.SetRating(ctx, delivery.ID, input.Rating, input.Comment)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store rating")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery already rated")
		}
		if delivery.DriverID != nil {
			if err := s.drivers.WithTx(tx).RecomputeRating(ctx, *delivery.DriverID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute driver rating")
			}
		}
		rating := input.Rating
		delivery.Rating = &rating
		delivery.RatingComment = input.Comment
		rated = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rated, nil
}

func (s *service) GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) AvailableDrivers(ctx context.Context, deliveryID uuid.UUID) (*AvailableDriversResult, error) {
	delivery, err := s.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.dispatch.FindAvailableNear(ctx, delivery.PickupLatitude, delivery.PickupLongitude)
	if err != nil {
		return nil, err
	}
	return &AvailableDriversResult{DeliveryID: delivery.ID, Drivers: candidates}, nil
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, deliveryID uuid.UUID, payload payloads.NotificationRequestedEvent) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   deliveryID,
		Data:          payload,
	})
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
