package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	ticket_db "ms-booking/internal/tickets/db"
	"ms-booking/internal/tickets/qr"
	"ms-booking/internal/utils"
)

// Issuer mints one signed ticket per purchased unit. Issuance runs
// inside the booking-confirmation transaction: either every ticket for
// the booking exists or none do. A count mismatch observed after commit
// is ErrPartialIssuance, which flags the booking for reconciliation and
// is never silently retried.
type Issuer struct {
	signer *Signer
	qr     *qr.Generator
	db     *ticket_db.DB
	logger *logger.Logger
}

func NewIssuer(signer *Signer, bunDB bun.IDB, log *logger.Logger) *Issuer {
	return &Issuer{
		signer: signer,
		qr:     qr.NewGenerator(),
		db:     &ticket_db.DB{Bun: bunDB},
		logger: log,
	}
}

// IssueTx mints the booking's tickets inside the caller's transaction.
func (i *Issuer) IssueTx(ctx context.Context, tx bun.Tx, booking models.Booking, tierName string) ([]models.Ticket, error) {
	now := time.Now()
	tickets := make([]models.Ticket, 0, booking.Quantity)

	for n := 1; n <= booking.Quantity; n++ {
		ticketID := uuid.NewString()
		claims := TokenClaims{
			TicketID:  ticketID,
			BookingID: booking.BookingID,
			TierID:    booking.TierID,
			EventID:   booking.EventID,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt: jwt.NewNumericDate(now),
				Subject:  booking.BuyerID,
			},
		}
		token, err := i.signer.Sign(claims)
		if err != nil {
			return nil, fmt.Errorf("sign ticket %d/%d for booking %s: %w", n, booking.Quantity, booking.BookingID, err)
		}
		qrBytes, err := i.qr.Generate(token)
		if err != nil {
			return nil, fmt.Errorf("generate QR for ticket %s: %w", ticketID, err)
		}

		tickets = append(tickets, models.Ticket{
			TicketID:        ticketID,
			Code:            utils.GenerateTicketCode(),
			BookingID:       booking.BookingID,
			TierID:          booking.TierID,
			EventID:         booking.EventID,
			UnitLabel:       fmt.Sprintf("%s-%d", tierName, n),
			Token:           token,
			QRCode:          qrBytes,
			PriceAtPurchase: booking.Total / float64(booking.Quantity),
			Status:          models.TicketIssued,
			IssuedAt:        now,
		})
	}

	if err := i.db.WithDB(tx).CreateTickets(ctx, tickets); err != nil {
		return nil, fmt.Errorf("insert tickets for booking %s: %w", booking.BookingID, err)
	}

	i.logger.Info("TICKET", fmt.Sprintf("Issued %d tickets for booking %s", len(tickets), booking.BookingID))
	return tickets, nil
}

// VerifyIssued cross-checks the persisted ticket count after the
// confirmation transaction committed. A mismatch means the write was
// torn in a way the transaction should have prevented; it is fatal.
func (i *Issuer) VerifyIssued(ctx context.Context, bookingID string, want int) error {
	got, err := i.db.CountByBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if got != want {
		i.logger.Error("TICKET", fmt.Sprintf("Booking %s has %d tickets, expected %d", bookingID, got, want))
		return models.ErrPartialIssuance
	}
	return nil
}

func (i *Issuer) Signer() *Signer {
	return i.signer
}
