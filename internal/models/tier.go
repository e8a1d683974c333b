package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TicketTier is the unit of sellable capacity for an event. Available is
// decremented when a hold reserves units and credited back when the hold
// is released; Sold grows when a hold is committed. At every instant
// Available + Held + Sold == Capacity and Available >= 0.
type TicketTier struct {
	bun.BaseModel `bun:"table:ticket_tiers"`

	TierID      string    `bun:"tier_id,pk" json:"tier_id"`
	EventID     string    `bun:"event_id,notnull" json:"event_id"`
	OrganizerID string    `bun:"organizer_id,notnull" json:"organizer_id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Price       float64   `bun:"price,notnull" json:"price"`
	Currency    string    `bun:"currency,notnull" json:"currency"`
	Capacity    int       `bun:"capacity,notnull" json:"capacity"`
	Available   int       `bun:"available,notnull" json:"available"`
	Held        int       `bun:"held,notnull" json:"held"`
	Sold        int       `bun:"sold,notnull" json:"sold"`
	MinPerOrder int       `bun:"min_per_order" json:"min_per_order"`
	MaxPerOrder int       `bun:"max_per_order" json:"max_per_order"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}
