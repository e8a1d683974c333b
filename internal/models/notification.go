package models

import "time"

// Notification payloads published to Kafka for the notification
// collaborator. Delivery is fire-and-forget: publish failures are logged
// and never roll back booking or ticket state.

type BookingConfirmedEvent struct {
	BookingID string    `json:"booking_id"`
	Reference string    `json:"reference"`
	BuyerID   string    `json:"buyer_id"`
	EventID   string    `json:"event_id"`
	Quantity  int       `json:"quantity"`
	Total     float64   `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

type BookingCancelledEvent struct {
	BookingID    string    `json:"booking_id"`
	BuyerID      string    `json:"buyer_id"`
	EventID      string    `json:"event_id"`
	RefundID     string    `json:"refund_id,omitempty"`
	RefundAmount float64   `json:"refund_amount"`
	Timestamp    time.Time `json:"timestamp"`
}

type TicketCheckedInEvent struct {
	TicketID  string    `json:"ticket_id"`
	BookingID string    `json:"booking_id"`
	EventID   string    `json:"event_id"`
	Gate      string    `json:"gate,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
