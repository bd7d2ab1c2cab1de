package callerctx

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/packdrop-backend/api/middleware"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
)

// Resolve extracts the authenticated caller seeded by the auth middleware.
func Resolve(r *http.Request) (middleware.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return middleware.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	return actor, nil
}

// PayoutUserType maps a caller role to the payout account it owns.
func PayoutUserType(role enums.UserRole) (enums.PayoutUserType, error) {
	switch role {
	case enums.UserRoleDriver:
		return enums.PayoutUserDriver, nil
	case enums.UserRoleVendor:
		return enums.PayoutUserVendor, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "role has no payout account")
}

// UserID is a shorthand for handlers that only need the caller id.
func UserID(r *http.Request) (uuid.UUID, error) {
	actor, err := Resolve(r)
	if err != nil {
		return uuid.Nil, err
	}
	return actor.UserID, nil
}
