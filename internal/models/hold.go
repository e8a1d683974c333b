package models

import (
	"time"

	"github.com/uptrace/bun"
)

type HoldStatus string

const (
	HoldPending   HoldStatus = "pending"
	HoldConfirmed HoldStatus = "confirmed"
	HoldExpired   HoldStatus = "expired"
	HoldCancelled HoldStatus = "cancelled"
)

// Hold is a time-bounded reservation of tier capacity. It is created
// PENDING and moves exactly once to CONFIRMED, EXPIRED or CANCELLED;
// the terminal states are immutable.
type Hold struct {
	bun.BaseModel `bun:"table:holds"`

	HoldID    string     `bun:"hold_id,pk" json:"hold_id"`
	TierID    string     `bun:"tier_id,notnull" json:"tier_id"`
	EventID   string     `bun:"event_id,notnull" json:"event_id"`
	BuyerID   string     `bun:"buyer_id,notnull" json:"buyer_id"`
	Quantity  int        `bun:"quantity,notnull" json:"quantity"`
	Status    HoldStatus `bun:"status,notnull" json:"status"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt time.Time  `bun:"expires_at,notnull" json:"expires_at"`
}

func (h *Hold) ExpiredAt(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// AddOnSelection is attached to a hold at checkout time. It has no
// lifecycle of its own.
type AddOnSelection struct {
	AddOnID   string  `json:"addon_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type HoldRequest struct {
	TierID   string `json:"tier_id"`
	Quantity int    `json:"quantity"`
}

type HoldResponse struct {
	HoldID    string    `json:"hold_id"`
	TierID    string    `json:"tier_id"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}
