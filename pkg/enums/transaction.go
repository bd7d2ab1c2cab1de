package enums

// TransactionType maps to the transaction_type enum in Postgres.
type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypePayout  TransactionType = "payout"
	TransactionTypeRefund  TransactionType = "refund"
)

var validTransactionTypes = []TransactionType{
	TransactionTypePayment,
	TransactionTypePayout,
	TransactionTypeRefund,
}

// IsValid reports whether the value matches the canonical transaction_type enum.
func (t TransactionType) IsValid() bool {
	return oneOf(t, validTransactionTypes)
}

// TransactionStatus maps to the transaction_status enum in Postgres.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusSuccessful TransactionStatus = "successful"
	TransactionStatusFailed     TransactionStatus = "failed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusSuccessful,
	TransactionStatusFailed,
}

// IsValid reports whether the value matches the canonical transaction_status enum.
func (s TransactionStatus) IsValid() bool {
	return oneOf(s, validTransactionStatuses)
}
