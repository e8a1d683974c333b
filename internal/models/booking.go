package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Booking is created when a hold is confirmed by a successful payment.
// It owns its tickets; tickets refer back by BookingID only.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID      string           `bun:"booking_id,pk" json:"booking_id"`
	Reference      string           `bun:"reference,unique,notnull" json:"reference"`
	HoldID         string           `bun:"hold_id,notnull" json:"hold_id"`
	BuyerID        string           `bun:"buyer_id,notnull" json:"buyer_id"`
	EventID        string           `bun:"event_id,notnull" json:"event_id"`
	TierID         string           `bun:"tier_id,notnull" json:"tier_id"`
	OrganizerID    string           `bun:"organizer_id,notnull" json:"organizer_id"`
	Quantity       int              `bun:"quantity,notnull" json:"quantity"`
	AddOns         []AddOnSelection `bun:"addons,type:jsonb" json:"addons,omitempty"`
	DiscountCode   string           `bun:"discount_code,nullzero" json:"discount_code,omitempty"`
	DiscountAmount float64          `bun:"discount_amount" json:"discount_amount"`
	Subtotal       float64          `bun:"subtotal,notnull" json:"subtotal"`
	Total          float64          `bun:"total,notnull" json:"total"`
	Currency       string           `bun:"currency,notnull" json:"currency"`
	PaymentRef     string           `bun:"payment_ref,nullzero" json:"payment_ref,omitempty"`
	Status         BookingStatus    `bun:"status,notnull" json:"status"`

	// NeedsReconciliation is set when issuance or ledger posting failed
	// partway. Such bookings are excluded from automatic refund and
	// capacity release until an operator resolves them.
	NeedsReconciliation bool `bun:"needs_reconciliation" json:"needs_reconciliation,omitempty"`

	ConfirmedAt time.Time `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`
	CancelledAt time.Time `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

type CheckoutRequest struct {
	HoldID       string           `json:"hold_id"`
	DiscountCode string           `json:"discount_code,omitempty"`
	AddOns       []AddOnSelection `json:"addons,omitempty"`
	PaymentMethod string          `json:"payment_method"`
}

type CheckoutResponse struct {
	BookingID string  `json:"booking_id,omitempty"`
	Reference string  `json:"reference,omitempty"`
	Total     float64 `json:"total"`
	Discount  float64 `json:"discount"`
	Status    string  `json:"status"`
	PaymentRef string `json:"payment_ref,omitempty"`
}
