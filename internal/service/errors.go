package service

import "errors"

var (
	// ErrInvalidBatchSize is returned when a cursor is created with a non-positive batch size.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidInvoiceID is returned when an invoice ID is not positive.
	ErrInvalidInvoiceID = errors.New("invalid invoice id")

	// ErrPaymentNotRecorded is returned when a charge went through but the invoice
	// could not be moved out of STARTED_PAYMENT.
	ErrPaymentNotRecorded = errors.New("payment outcome not recorded")
)
