package service

import (
	"errors"

	"billing/internal/domain"
	"billing/internal/gateway"
)

// OutcomeKind is the classification of a single charge.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeDeclined
	OutcomeNetworkFailure
	OutcomeUnknownCustomer
	OutcomeCurrencyMismatch
	OutcomeUnknownFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeDeclined:
		return "declined"
	case OutcomeNetworkFailure:
		return "network_failure"
	case OutcomeUnknownCustomer:
		return "unknown_customer"
	case OutcomeCurrencyMismatch:
		return "currency_mismatch"
	case OutcomeUnknownFailure:
		return "unknown_failure"
	}
	return "invalid"
}

// Outcome is the tagged result of a charge. Message is the human-readable detail
// stored with failures.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

// ClassifyCharge maps a gateway result onto exactly one outcome kind.
func ClassifyCharge(charged bool, err error) Outcome {
	switch {
	case err == nil && charged:
		return Outcome{Kind: OutcomeSuccess}
	case err == nil:
		return Outcome{Kind: OutcomeDeclined, Message: string(domain.FailureReasonInsufficientBalance)}
	case errors.Is(err, gateway.ErrNetwork):
		return Outcome{Kind: OutcomeNetworkFailure, Message: err.Error()}
	case errors.Is(err, gateway.ErrUnknownCustomer):
		return Outcome{Kind: OutcomeUnknownCustomer, Message: err.Error()}
	case errors.Is(err, gateway.ErrCurrencyMismatch):
		return Outcome{Kind: OutcomeCurrencyMismatch, Message: err.Error()}
	default:
		return Outcome{Kind: OutcomeUnknownFailure, Message: err.Error()}
	}
}

// Succeeded reports whether the customer was charged.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Reason is the failure reason stored for the outcome. Empty for success.
func (o Outcome) Reason() domain.FailureReason {
	switch o.Kind {
	case OutcomeDeclined:
		return domain.FailureReasonInsufficientBalance
	case OutcomeNetworkFailure:
		return domain.FailureReasonNetwork
	case OutcomeUnknownCustomer:
		return domain.FailureReasonUnknownCustomer
	case OutcomeCurrencyMismatch:
		return domain.FailureReasonCurrencyMismatch
	case OutcomeUnknownFailure:
		return domain.FailureReasonUnknown
	}
	return ""
}
