package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlatOff    DiscountType = "flat_off"
)

// DiscountCode is mutated only by the checkout orchestrator, atomically
// with redemption: TimesUsed is bumped by a conditional update guarded
// by the global cap, and the per-buyer cap is checked against the
// redemptions table inside the same transaction.
type DiscountCode struct {
	bun.BaseModel `bun:"table:discount_codes"`

	Code          string       `bun:"code,pk" json:"code"`
	EventID       string       `bun:"event_id,nullzero" json:"event_id,omitempty"`
	Type          DiscountType `bun:"type,notnull" json:"type"`
	Value         float64      `bun:"value,notnull" json:"value"`
	MaxDiscount   float64      `bun:"max_discount" json:"max_discount,omitempty"`
	MinOrder      float64      `bun:"min_order" json:"min_order,omitempty"`
	ValidFrom     time.Time    `bun:"valid_from,notnull" json:"valid_from"`
	ValidUntil    time.Time    `bun:"valid_until,notnull" json:"valid_until"`
	UsageLimit    int          `bun:"usage_limit" json:"usage_limit"` // 0 = unlimited
	PerBuyerLimit int          `bun:"per_buyer_limit" json:"per_buyer_limit"`
	TimesUsed     int          `bun:"times_used,notnull" json:"times_used"`
	Active        bool         `bun:"active,notnull" json:"active"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
}

func (d *DiscountCode) WithinWindow(now time.Time) bool {
	return !now.Before(d.ValidFrom) && !now.After(d.ValidUntil)
}

// Amount computes the discount for a given order subtotal without
// looking at usage caps; cap checks happen at redemption time.
func (d *DiscountCode) Amount(subtotal float64) float64 {
	var amount float64
	switch d.Type {
	case DiscountPercentage:
		amount = subtotal * d.Value / 100
		if d.MaxDiscount > 0 && amount > d.MaxDiscount {
			amount = d.MaxDiscount
		}
	case DiscountFlatOff:
		amount = d.Value
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}

// DiscountRedemption records one use of a code by one buyer. One row per
// redemption; the per-buyer cap is a count over these rows.
type DiscountRedemption struct {
	bun.BaseModel `bun:"table:discount_redemptions"`

	RedemptionID string    `bun:"redemption_id,pk" json:"redemption_id"`
	Code         string    `bun:"code,notnull" json:"code"`
	BuyerID      string    `bun:"buyer_id,notnull" json:"buyer_id"`
	HoldID       string    `bun:"hold_id,notnull" json:"hold_id"`
	Amount       float64   `bun:"amount,notnull" json:"amount"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}
