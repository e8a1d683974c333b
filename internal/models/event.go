package models

import (
	"time"
)

// EventInfo is read-only metadata served by the venue/event collaborator.
// The booking core never writes it.
type EventInfo struct {
	EventID       string    `json:"event_id"`
	Name          string    `json:"name"`
	OrganizerID   string    `json:"organizer_id"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	CheckInOpens  time.Time `json:"check_in_opens"`
	CheckInCloses time.Time `json:"check_in_closes"`
	Cancelled     bool      `json:"cancelled"`
}

// CheckInOpen reports whether the gate window is open at t.
func (e *EventInfo) CheckInOpen(t time.Time) bool {
	return !t.Before(e.CheckInOpens) && !t.After(e.CheckInCloses)
}
