package enums

// UserRole is the platform role carried in access tokens.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleDriver   UserRole = "driver"
	UserRoleVendor   UserRole = "vendor"
	UserRoleCustomer UserRole = "customer"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleDriver,
	UserRoleVendor,
	UserRoleCustomer,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	return oneOf(r, validUserRoles)
}
