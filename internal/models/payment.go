package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentRecord tracks one payment intent per hold. The intent is created
// with an idempotency key derived from the hold ID, so retried checkouts
// reuse the same intent and never double-charge. Webhook reconciliation
// updates Status with a conditional update so duplicate deliveries and
// late arrivals apply exactly once.
type PaymentRecord struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID string        `bun:"payment_id,pk" json:"payment_id"`
	HoldID    string        `bun:"hold_id,unique,notnull" json:"hold_id"`
	IntentRef string        `bun:"intent_ref,nullzero" json:"intent_ref,omitempty"`
	Amount    float64       `bun:"amount,notnull" json:"amount"`
	Currency  string        `bun:"currency,notnull" json:"currency"`
	Status    PaymentStatus `bun:"status,notnull" json:"status"`

	// Pricing snapshot taken at checkout time, so a booking promoted
	// later by the webhook path carries the amounts the buyer saw.
	Subtotal       float64          `bun:"subtotal" json:"subtotal"`
	DiscountCode   string           `bun:"discount_code,nullzero" json:"discount_code,omitempty"`
	DiscountAmount float64          `bun:"discount_amount" json:"discount_amount"`
	AddOns         []AddOnSelection `bun:"addons,type:jsonb" json:"addons,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// PaymentEvent is the reconciliation input, either from the synchronous
// confirm call or from the gateway webhook.
type PaymentEvent struct {
	IntentRef string        `json:"intent_ref"`
	HoldID    string        `json:"hold_id"`
	Status    PaymentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
