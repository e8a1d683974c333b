package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RefundInitiator string

const (
	RefundByBuyer     RefundInitiator = "buyer"
	RefundByOrganizer RefundInitiator = "organizer"
)

// Refund is append-only once created.
type Refund struct {
	bun.BaseModel `bun:"table:refunds"`

	RefundID  string  `bun:"refund_id,pk" json:"refund_id"`
	BookingID string  `bun:"booking_id,notnull" json:"booking_id"`
	Amount    float64 `bun:"amount,notnull" json:"amount"`
	// Penalty is the non-refunded share of the booking total withheld
	// from the buyer under the policy tier.
	Penalty    float64         `bun:"penalty" json:"penalty"`
	PolicyTier string          `bun:"policy_tier,notnull" json:"policy_tier"`
	Initiator  RefundInitiator `bun:"initiator,notnull" json:"initiator"`
	Reason     string          `bun:"reason,nullzero" json:"reason,omitempty"`
	// SkippedTickets lists tickets that could not be voided because they
	// were already checked in.
	SkippedTickets []string  `bun:"skipped_tickets,type:jsonb" json:"skipped_tickets,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

type RefundRequest struct {
	Reason string `json:"reason,omitempty"`
}

type RefundResponse struct {
	RefundID       string   `json:"refund_id"`
	BookingID      string   `json:"booking_id"`
	Amount         float64  `json:"amount"`
	Penalty        float64  `json:"penalty"`
	PolicyTier     string   `json:"policy_tier"`
	SkippedTickets []string `json:"skipped_tickets,omitempty"`
}
