package enums

// PayoutRequestStatus maps to the payout_status enum in Postgres.
type PayoutRequestStatus string

const (
	PayoutStatusPending   PayoutRequestStatus = "pending"
	PayoutStatusApproved  PayoutRequestStatus = "approved"
	PayoutStatusProcessed PayoutRequestStatus = "processed"
	PayoutStatusRejected  PayoutRequestStatus = "rejected"
)

var validPayoutStatuses = []PayoutRequestStatus{
	PayoutStatusPending,
	PayoutStatusApproved,
	PayoutStatusProcessed,
	PayoutStatusRejected,
}

// OpenPayoutStatuses are the statuses that block a new request for the same user.
var OpenPayoutStatuses = []PayoutRequestStatus{PayoutStatusPending, PayoutStatusApproved}

// IsValid reports whether the value matches the canonical payout_status enum.
func (s PayoutRequestStatus) IsValid() bool {
	return oneOf(s, validPayoutStatuses)
}

// IsOpen reports whether the request still holds the user's single open slot.
func (s PayoutRequestStatus) IsOpen() bool {
	return s == PayoutStatusPending || s == PayoutStatusApproved
}

// ParsePayoutRequestStatus converts raw input into PayoutRequestStatus.
func ParsePayoutRequestStatus(value string) (PayoutRequestStatus, error) {
	return parse("payout status", value, validPayoutStatuses)
}

// PayoutUserType maps to the payout_user_type enum in Postgres.
type PayoutUserType string

const (
	PayoutUserDriver PayoutUserType = "driver"
	PayoutUserVendor PayoutUserType = "vendor"
)

var validPayoutUserTypes = []PayoutUserType{
	PayoutUserDriver,
	PayoutUserVendor,
}

// IsValid reports whether the value matches the canonical payout_user_type enum.
func (t PayoutUserType) IsValid() bool {
	return oneOf(t, validPayoutUserTypes)
}

// ParsePayoutUserType converts raw input into PayoutUserType.
func ParsePayoutUserType(value string) (PayoutUserType, error) {
	return parse("payout user type", value, validPayoutUserTypes)
}
