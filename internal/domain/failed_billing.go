package domain

import "time"

// FailureReason categorises why a payment attempt ended in FAILED_PAYMENT.
type FailureReason string

const (
	FailureReasonInsufficientBalance FailureReason = "Insufficient Balance"
	FailureReasonNetwork             FailureReason = "Network Error"
	FailureReasonUnknownCustomer     FailureReason = "Unknown Customer"
	FailureReasonCurrencyMismatch    FailureReason = "Currency Mismatch Error"
	FailureReasonUnknown             FailureReason = "Unknown Error"
)

// FailedBilling is an append-only record of a failed payment attempt.
type FailedBilling struct {
	ID        string
	InvoiceID int64
	Reason    FailureReason
	Message   string
	Timestamp time.Time
}
