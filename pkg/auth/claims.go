package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

// Claims is the access token body shared with the identity service. The
// subject mirrors UserID so other services can read it without our schema.
type Claims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks during parsing.
func (c *Claims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("user_id claim is empty")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("role claim %q is not recognised", c.Role)
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return errors.New("subject does not match user_id")
	}
	if c.ID == "" {
		return errors.New("jti claim is empty")
	}
	return nil
}
