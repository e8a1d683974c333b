package refund

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	booking_db "ms-booking/internal/booking/db"
	"ms-booking/internal/commission"
	"ms-booking/internal/config"
	hold_db "ms-booking/internal/hold/db"
	"ms-booking/internal/inventory"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/refund/db"
	ticket_db "ms-booking/internal/tickets/db"
)

// EventSource supplies the event metadata used to evaluate the
// cancellation policy. Returning nil with no error means the event is
// unknown.
type EventSource interface {
	FetchEvent(ctx context.Context, eventID string) (*models.EventInfo, error)
}

// Service computes refunds from the cancellation policy table and
// unwinds a booking: refund record, ticket voiding, commission reversal
// and inventory restock commit in one transaction or not at all.
// Tickets that were already used at the gate are not refundable; they
// are skipped and reported back to the caller.
type Service struct {
	bunDB      *bun.DB
	refunds    *db.DB
	bookings   *booking_db.DB
	tickets    *ticket_db.DB
	holds      *hold_db.DB
	ledger     *inventory.Ledger
	commission *commission.Service
	events     EventSource
	producer   *kafka.Producer
	policy     []config.PolicyTier
	logger     *logger.Logger
}

func NewService(
	bunDB *bun.DB,
	ledger *inventory.Ledger,
	comm *commission.Service,
	events EventSource,
	producer *kafka.Producer,
	policy []config.PolicyTier,
	log *logger.Logger,
) *Service {
	return &Service{
		bunDB:      bunDB,
		refunds:    &db.DB{Bun: bunDB},
		bookings:   &booking_db.DB{Bun: bunDB},
		tickets:    &ticket_db.DB{Bun: bunDB},
		holds:      &hold_db.DB{Bun: bunDB},
		ledger:     ledger,
		commission: comm,
		events:     events,
		producer:   producer,
		policy:     policy,
		logger:     log,
	}
}

// EvaluatePolicy picks the refund percentage for a cancellation made
// timeToEvent before the event starts. The table is ordered by
// threshold descending; the first met threshold wins. A cancellation
// after the event started matches nothing and refunds zero.
func (s *Service) EvaluatePolicy(timeToEvent time.Duration) config.PolicyTier {
	for _, tier := range s.policy {
		if timeToEvent >= tier.Before {
			return tier
		}
	}
	return config.PolicyTier{Before: 0, Percent: 0}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CancelBooking is buyer-initiated cancellation. The refund amount is
// the policy percentage of the paid total, evaluated at this instant.
func (s *Service) CancelBooking(ctx context.Context, bookingID, buyerID, reason string) (*models.RefundResponse, error) {
	booking, err := s.bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s not found", bookingID)
	}
	if buyerID != "" && booking.BuyerID != buyerID {
		return nil, fmt.Errorf("booking %s does not belong to buyer %s", bookingID, buyerID)
	}

	info, err := s.events.FetchEvent(ctx, booking.EventID)
	if err != nil {
		return nil, fmt.Errorf("fetch event %s for policy evaluation: %w", booking.EventID, err)
	}
	if info == nil {
		return nil, fmt.Errorf("event %s not found", booking.EventID)
	}

	policyTier := s.EvaluatePolicy(time.Until(info.StartDate))
	amount := round2(booking.Total * policyTier.Percent / 100)

	refund, err := s.unwind(ctx, booking, amount, policyTier.Label(), models.RefundByBuyer, reason)
	if err != nil {
		return nil, err
	}

	s.producer.PublishBookingCancelled(ctx, models.BookingCancelledEvent{
		BookingID:    booking.BookingID,
		BuyerID:      booking.BuyerID,
		EventID:      booking.EventID,
		RefundID:     refund.RefundID,
		RefundAmount: refund.Amount,
		Timestamp:    time.Now(),
	})

	return refundResponse(refund), nil
}

// CancelEvent is organizer-initiated cancellation: every confirmed
// booking is refunded in full and a single penalty entry is charged to
// the organizer, computed over the gross refunded value.
func (s *Service) CancelEvent(ctx context.Context, eventID, reason string) ([]models.RefundResponse, error) {
	bookings, err := s.bookings.GetConfirmedByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var (
		responses   []models.RefundResponse
		gross       float64
		organizerID string
		currency    string
	)
	for _, booking := range bookings {
		refund, err := s.unwind(ctx, &booking, round2(booking.Total), "organizer_cancellation", models.RefundByOrganizer, reason)
		if err != nil {
			// One stuck booking must not block the rest of the event's
			// refunds. It stays confirmed for an operator to resolve.
			s.logger.Error("REFUND", fmt.Sprintf("Failed to refund booking %s during event %s cancellation: %v",
				booking.BookingID, eventID, err))
			continue
		}
		gross += booking.Total
		organizerID = booking.OrganizerID
		currency = booking.Currency
		responses = append(responses, *refundResponse(refund))

		s.producer.PublishBookingCancelled(ctx, models.BookingCancelledEvent{
			BookingID:    booking.BookingID,
			BuyerID:      booking.BuyerID,
			EventID:      booking.EventID,
			RefundID:     refund.RefundID,
			RefundAmount: refund.Amount,
			Timestamp:    time.Now(),
		})
	}

	if released := s.releasePendingHolds(ctx, eventID); released > 0 {
		s.logger.Info("REFUND", fmt.Sprintf("Released %d pending holds for cancelled event %s", released, eventID))
	}

	if organizerID != "" {
		if _, err := s.commission.PostPenalty(ctx, organizerID, currency, gross); err != nil {
			return responses, err
		}
	}
	return responses, nil
}

// releasePendingHolds cancels holds still pending against the event's
// tiers so their capacity is not stranded until the TTL sweep. Each
// hold goes through the PENDING -> CANCELLED transition guard, so a
// concurrent sweeper or checkout releases the capacity at most once.
func (s *Service) releasePendingHolds(ctx context.Context, eventID string) int {
	tiers, err := s.ledger.GetTiersByEvent(ctx, eventID)
	if err != nil {
		s.logger.Error("REFUND", fmt.Sprintf("Failed to list tiers for cancelled event %s: %v", eventID, err))
		return 0
	}

	released := 0
	for _, tier := range tiers {
		pending, err := s.holds.ListPendingByTier(ctx, tier.TierID)
		if err != nil {
			s.logger.Error("REFUND", fmt.Sprintf("Failed to list pending holds for tier %s: %v", tier.TierID, err))
			continue
		}
		for _, h := range pending {
			hold := h
			var won bool
			err := s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				var err error
				won, err = s.holds.WithDB(tx).Transition(ctx, hold.HoldID, models.HoldPending, models.HoldCancelled)
				if err != nil {
					return err
				}
				if !won {
					return nil
				}
				return s.ledger.WithDB(tx).Release(ctx, hold.TierID, hold.Quantity)
			})
			if err != nil {
				s.logger.Error("REFUND", fmt.Sprintf("Failed to release hold %s for cancelled event %s: %v",
					hold.HoldID, eventID, err))
				continue
			}
			if won {
				released++
			}
		}
	}
	return released
}

// GetByBooking returns the refund issued for a booking, if any.
func (s *Service) GetByBooking(ctx context.Context, bookingID string) (*models.Refund, error) {
	return s.refunds.GetRefundByBooking(ctx, bookingID)
}

// unwind performs the transactional part of a cancellation. The
// booking's CONFIRMED -> CANCELLED transition is the guard: a booking
// already cancelled by a racing call loses the transition and the whole
// unwind is abandoned with ErrInvalidState.
func (s *Service) unwind(ctx context.Context, booking *models.Booking, amount float64, policyLabel string, initiator models.RefundInitiator, reason string) (*models.Refund, error) {
	if booking.Status != models.BookingConfirmed {
		return nil, models.ErrInvalidState
	}
	if booking.NeedsReconciliation {
		// Capacity state for this booking is unknown; releasing it
		// automatically could compound an oversell.
		return nil, fmt.Errorf("booking %s is flagged for reconciliation: %w", booking.BookingID, models.ErrInvalidState)
	}

	now := time.Now()
	refund := models.Refund{
		RefundID:   uuid.NewString(),
		BookingID:  booking.BookingID,
		Amount:     amount,
		Penalty:    round2(booking.Total - amount),
		PolicyTier: policyLabel,
		Initiator:  initiator,
		Reason:     reason,
		CreatedAt:  now,
	}

	err := s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		won, err := s.bookings.WithDB(tx).Transition(ctx, booking.BookingID, models.BookingConfirmed, models.BookingCancelled, now)
		if err != nil {
			return err
		}
		if !won {
			return models.ErrInvalidState
		}

		tickets, err := s.tickets.WithDB(tx).GetTicketsByBooking(ctx, booking.BookingID)
		if err != nil {
			return err
		}
		voided := 0
		for _, ticket := range tickets {
			won, err := s.tickets.WithDB(tx).Void(ctx, ticket.TicketID, now)
			if err != nil {
				return err
			}
			if !won {
				// Used at the gate, or voided by an earlier partial run.
				refund.SkippedTickets = append(refund.SkippedTickets, ticket.TicketID)
				continue
			}
			voided++
		}

		if voided > 0 {
			if err := s.ledger.WithDB(tx).Restock(ctx, booking.TierID, voided); err != nil {
				return err
			}
		}

		if err := s.refunds.WithDB(tx).CreateRefund(ctx, refund); err != nil {
			return err
		}
		_, err = s.commission.ReverseTx(ctx, tx, *booking, refund.RefundID, refund.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogBooking("cancelled", booking.BookingID, fmt.Sprintf("Refunded %.2f %s (%s, %d tickets skipped)",
		refund.Amount, booking.Currency, policyLabel, len(refund.SkippedTickets)))
	return &refund, nil
}

func refundResponse(r *models.Refund) *models.RefundResponse {
	return &models.RefundResponse{
		RefundID:       r.RefundID,
		BookingID:      r.BookingID,
		Amount:         r.Amount,
		Penalty:        r.Penalty,
		PolicyTier:     r.PolicyTier,
		SkippedTickets: r.SkippedTickets,
	}
}
