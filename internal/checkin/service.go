package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	booking_db "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/tickets"
	ticket_db "ms-booking/internal/tickets/db"
)

// EventSource supplies the event metadata needed for the gate window
// check. Returning nil with no error means the event is unknown.
type EventSource interface {
	FetchEvent(ctx context.Context, eventID string) (*models.EventInfo, error)
}

// Service validates tickets at the gate. Verification order matters:
// signature first, then ticket and booking state, then the event
// window, and finally the conditional check-in write. Two gates
// scanning the same ticket race on that last write, and exactly one of
// them wins.
type Service struct {
	signer   *tickets.Signer
	tickets  *ticket_db.DB
	bookings *booking_db.DB
	events   EventSource
	producer *kafka.Producer
	cfg      config.CheckInConfig
	logger   *logger.Logger
}

func NewService(
	bunDB bun.IDB,
	signer *tickets.Signer,
	events EventSource,
	producer *kafka.Producer,
	cfg config.CheckInConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		signer:   signer,
		tickets:  &ticket_db.DB{Bun: bunDB},
		bookings: &booking_db.DB{Bun: bunDB},
		events:   events,
		producer: producer,
		cfg:      cfg,
		logger:   log,
	}
}

// CheckIn admits one ticket exactly once.
func (s *Service) CheckIn(ctx context.Context, req models.CheckInRequest) (*models.CheckInResponse, error) {
	claims, err := s.signer.Verify(req.Token)
	if err != nil {
		s.logger.LogSecurity("checkin_rejected", fmt.Sprintf("Bad ticket signature at gate %s: %v", req.Gate, err))
		return nil, err
	}

	ticket, err := s.tickets.GetTicketByID(ctx, claims.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		// Signature verified but the ticket row is gone: treat it the
		// same as a forged token rather than leaking existence info.
		s.logger.LogSecurity("checkin_rejected", fmt.Sprintf("Valid signature for unknown ticket %s", claims.TicketID))
		return nil, models.ErrInvalidSignature
	}

	switch ticket.Status {
	case models.TicketVoid:
		return nil, models.ErrTicketVoid
	case models.TicketCheckedIn:
		return nil, models.ErrAlreadyCheckedIn
	}

	booking, err := s.bookings.GetBookingByID(ctx, ticket.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.Status != models.BookingConfirmed {
		return nil, models.ErrBookingNotConfirmed
	}

	now := time.Now()
	if err := s.checkWindow(ctx, ticket.EventID, now); err != nil {
		return nil, err
	}

	won, err := s.tickets.CheckIn(ctx, ticket.TicketID, req.Gate, req.Operator, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another gate admitted this ticket between our read and write.
		return nil, models.ErrAlreadyCheckedIn
	}

	s.logger.Info("CHECKIN", fmt.Sprintf("Ticket %s (%s) admitted at gate %s", ticket.TicketID, ticket.UnitLabel, req.Gate))

	s.producer.PublishTicketCheckedIn(ctx, models.TicketCheckedInEvent{
		TicketID:  ticket.TicketID,
		BookingID: ticket.BookingID,
		EventID:   ticket.EventID,
		Gate:      req.Gate,
		Timestamp: now,
	})

	return &models.CheckInResponse{
		TicketID:    ticket.TicketID,
		BookingID:   ticket.BookingID,
		UnitLabel:   ticket.UnitLabel,
		CheckedInAt: now,
	}, nil
}

// checkWindow enforces the gate window. Explicit open and close times
// from the events service win; otherwise the window is derived from the
// event start and the configured bounds. When the events service is
// unreachable the gate stays open rather than locking everyone out.
func (s *Service) checkWindow(ctx context.Context, eventID string, now time.Time) error {
	info, err := s.events.FetchEvent(ctx, eventID)
	if err != nil {
		s.logger.Warn("CHECKIN", fmt.Sprintf("Events service unavailable for %s, skipping window check: %v", eventID, err))
		return nil
	}
	if info == nil {
		return nil
	}
	if info.Cancelled {
		return models.ErrEventWindowClosed
	}

	if !info.CheckInOpens.IsZero() && !info.CheckInCloses.IsZero() {
		if !info.CheckInOpen(now) {
			return models.ErrEventWindowClosed
		}
		return nil
	}
	if !info.StartDate.IsZero() {
		opens := info.StartDate.Add(-s.cfg.OpensBefore)
		closes := info.StartDate.Add(s.cfg.ClosesAfter)
		if now.Before(opens) || now.After(closes) {
			return models.ErrEventWindowClosed
		}
	}
	return nil
}

// Verify checks a token without admitting it, for gate devices doing a
// dry-run scan.
func (s *Service) Verify(ctx context.Context, token string) (*models.Ticket, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetTicketByID(ctx, claims.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, models.ErrInvalidSignature
	}
	return ticket, nil
}
