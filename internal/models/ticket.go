package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketIssued    TicketStatus = "issued"
	TicketCheckedIn TicketStatus = "checked_in"
	TicketVoid      TicketStatus = "void"
)

// Ticket is one purchased unit. The signed token embeds the ticket,
// booking, tier and event identifiers so the gate can verify it offline;
// the QR code is just a rendering of that token.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID        string       `bun:"ticket_id,pk" json:"ticket_id"`
	Code            string       `bun:"code,unique,notnull" json:"code"`
	BookingID       string       `bun:"booking_id,notnull" json:"booking_id"`
	TierID          string       `bun:"tier_id,notnull" json:"tier_id"`
	EventID         string       `bun:"event_id,notnull" json:"event_id"`
	UnitLabel       string       `bun:"unit_label" json:"unit_label"`
	Token           string       `bun:"token,notnull" json:"token"`
	QRCode          []byte       `bun:"qr_code" json:"qr_code,omitempty"`
	PriceAtPurchase float64      `bun:"price_at_purchase" json:"price_at_purchase"`
	Status          TicketStatus `bun:"status,notnull" json:"status"`
	IssuedAt        time.Time    `bun:"issued_at,notnull" json:"issued_at"`
	CheckedInAt     time.Time    `bun:"checked_in_at,nullzero" json:"checked_in_at,omitempty"`
	CheckedInGate   string       `bun:"checked_in_gate,nullzero" json:"checked_in_gate,omitempty"`
	CheckedInBy     string       `bun:"checked_in_by,nullzero" json:"checked_in_by,omitempty"`
	VoidedAt        time.Time    `bun:"voided_at,nullzero" json:"voided_at,omitempty"`
}

type CheckInRequest struct {
	Token    string `json:"token"`
	Gate     string `json:"gate,omitempty"`
	Operator string `json:"operator,omitempty"`
}

type CheckInResponse struct {
	TicketID    string    `json:"ticket_id"`
	BookingID   string    `json:"booking_id"`
	UnitLabel   string    `json:"unit_label"`
	CheckedInAt time.Time `json:"checked_in_at"`
}
