package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EntryKind string

const (
	EntryCommission EntryKind = "commission"
	EntryReversal   EntryKind = "reversal"
	EntryPenalty    EntryKind = "penalty"
	EntryCorrection EntryKind = "correction"
)

// CommissionEntry is an append-only ledger row. Positive amounts are
// commission earned by the platform on behalf of an organizer payout
// calculation, negative amounts are reversals or penalties. History is
// never mutated; corrections are new offsetting entries.
type CommissionEntry struct {
	bun.BaseModel `bun:"table:commission_entries"`

	EntryID     string    `bun:"entry_id,pk" json:"entry_id"`
	OrganizerID string    `bun:"organizer_id,notnull" json:"organizer_id"`
	BookingID   string    `bun:"booking_id,nullzero" json:"booking_id,omitempty"`
	RefundID    string    `bun:"refund_id,nullzero" json:"refund_id,omitempty"`
	Kind        EntryKind `bun:"kind,notnull" json:"kind"`
	Amount      float64   `bun:"amount,notnull" json:"amount"`
	Currency    string    `bun:"currency,notnull" json:"currency"`
	Period      string    `bun:"period,notnull" json:"period"` // YYYY-MM
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

// SettlementPeriod formats the period bucket an entry at t belongs to.
func SettlementPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// SettlementSummary is a pure aggregation over entries in one period.
type SettlementSummary struct {
	OrganizerID string  `json:"organizer_id"`
	Period      string  `json:"period"`
	Commission  float64 `json:"commission"`
	Penalties   float64 `json:"penalties"`
	Net         float64 `json:"net"`
}
