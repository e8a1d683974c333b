package models

import "errors"

// Buyer-facing errors. Handlers return these directly so the caller can
// retry or correct the request.
var (
	ErrSoldOut          = errors.New("sold out")
	ErrHoldExpired      = errors.New("hold expired")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrInvalidDiscount  = errors.New("invalid discount code")
	ErrPaymentFailed    = errors.New("payment failed")
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
	ErrEventWindowClosed = errors.New("event check-in window closed")
)

// Gate-facing errors.
var (
	ErrInvalidSignature    = errors.New("invalid ticket signature")
	ErrTicketVoid          = errors.New("ticket is void")
	ErrBookingNotConfirmed = errors.New("booking not confirmed")
)

// Internal consistency errors. These are never returned to buyers: the
// affected booking is flagged for reconciliation and capacity is left
// untouched so an unknown-state oversell is not made worse.
var (
	ErrPartialIssuance     = errors.New("partial ticket issuance")
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
)
