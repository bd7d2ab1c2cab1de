package deliveries

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packdrop-backend/api/controllers/callerctx"
	"github.com/angelmondragon/packdrop-backend/api/responses"
	"github.com/angelmondragon/packdrop-backend/api/validators"
	internaldeliveries "github.com/angelmondragon/packdrop-backend/internal/deliveries"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/types"
)

type createRequest struct {
	OrderID     string            `json:"orderId" validate:"required,uuid"`
	Pickup      types.Coordinates `json:"pickup"`
	Dropoff     types.Coordinates `json:"dropoff"`
	DistanceKm  decimal.Decimal   `json:"distanceKm" validate:"gte=0"`
	DeliveryFee *decimal.Decimal  `json:"deliveryFee,omitempty"`
}

type assignRequest struct {
	DriverID string `json:"driverId" validate:"required,uuid"`
}

type statusRequest struct {
	Status    string   `json:"status" validate:"required"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type proofRequest struct {
	ProofReference string `json:"proofReference" validate:"required,max=512"`
}

type rateRequest struct {
	Rating  int     `json:"rating" validate:"gte=1,lte=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

func unavailable(svc internaldeliveries.Service) error {
	if svc == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable")
	}
	return nil
}

func actorFor(r *http.Request) (internaldeliveries.Actor, error) {
	caller, err := callerctx.Resolve(r)
	if err != nil {
		return internaldeliveries.Actor{}, err
	}
	return internaldeliveries.Actor{UserID: caller.UserID, Role: caller.Role}, nil
}

// Create opens a delivery for a confirmed order.
func Create(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := unavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := actorFor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.CreateDelivery(r.Context(), internaldeliveries.CreateDeliveryInput{
			OrderID:     uuid.MustParse(req.OrderID),
			Pickup:      req.Pickup,
			Dropoff:     req.Dropoff,
			DistanceKm:  req.DistanceKm,
			DeliveryFee: req.DeliveryFee,
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, delivery)
	}
}

func Get(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := unavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := svc.GetDelivery(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// AvailableDrivers lists drivers near the pickup point.
func AvailableDrivers(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := unavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AvailableDrivers(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AssignDriver claims a pending delivery for a driver.
func AssignDriver(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := unavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := actorFor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req assignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.AssignDriver(r.Context(), internaldeliveries.AssignDriverInput{
			DeliveryID: id,
			DriverID:   uuid.MustParse(req.DriverID),
			Actor:      actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// UpdateStatus moves a delivery along its lifecycle.
func UpdateStatus(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := unavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := actorFor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseDeliveryStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown delivery status").
				WithDetails(map[string]any{"field": "status", "allowed": enums.DeliveryStatuses()}))
			return
		}

		var location *types.Coordinates
		switch {
		case req.Latitude != nil && req.Longitude != nil:
			location = &types.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
		case req.Latitude != nil || req.Longitude != nil:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude must be sent together"))
			return
		}

		delivery, err := svc.UpdateStatus(r.Context(), internaldeliveries.UpdateStatusInput{
			DeliveryID: id,
			Status:     status,
			Location:   location,
			Actor:      actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// SubmitProof attaches the proof-of-delivery reference.
func SubmitProof(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := unavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := callerctx.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req proofRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.SubmitProof(r.Context(), internaldeliveries.SubmitProofInput{
			DeliveryID:     id,
			DriverUserID:   userID,
			ProofReference: req.ProofReference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// Rate records the customer's rating of a delivered order.
func Rate(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := unavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := callerctx.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req rateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.Comment = validators.SanitizeOptional(req.Comment, 1000)

		delivery, err := svc.RateDelivery(r.Context(), internaldeliveries.RateDeliveryInput{
			DeliveryID:     id,
			CustomerUserID: userID,
			Rating:         req.Rating,
			Comment:        req.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}
