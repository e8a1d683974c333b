package checkin_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/checkin"
	"ms-booking/internal/config"
	"ms-booking/internal/kafka"
	"ms-booking/internal/keys"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/tickets"
	ticket_db "ms-booking/internal/tickets/db"
)

type stubKeys struct{}

func (stubKeys) Current() (keys.SigningKey, error) {
	return keys.SigningKey{ID: "t1", Secret: "gate-test-secret"}, nil
}

func (stubKeys) Previous() (keys.SigningKey, bool) { return keys.SigningKey{}, false }

type stubEvents struct {
	info *models.EventInfo
	err  error
}

func (s *stubEvents) FetchEvent(ctx context.Context, eventID string) (*models.EventInfo, error) {
	return s.info, s.err
}

type gateFixture struct {
	svc    *checkin.Service
	signer *tickets.Signer
	bunDB  *bun.DB
	events *stubEvents
}

func setupGate(t *testing.T) *gateFixture {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Booking)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Ticket)(nil)))

	log := logger.NewLogger()
	signer := tickets.NewSigner(stubKeys{})
	events := &stubEvents{info: &models.EventInfo{
		EventID:   "event-1",
		StartDate: time.Now().Add(time.Hour),
	}}
	producer := kafka.NewProducer(config.KafkaConfig{Enabled: false}, log)

	svc := checkin.NewService(bunDB, signer, events, producer, config.CheckInConfig{
		OpensBefore: 2 * time.Hour,
		ClosesAfter: 4 * time.Hour,
	}, log)

	return &gateFixture{svc: svc, signer: signer, bunDB: bunDB, events: events}
}

// issueTicket stores a booking plus one signed ticket and returns the
// gate token.
func (f *gateFixture) issueTicket(t *testing.T, ticketID string, bookingStatus models.BookingStatus, ticketStatus models.TicketStatus) string {
	ctx := context.Background()
	bookingID := "booking-" + ticketID

	booking := models.Booking{
		BookingID:   bookingID,
		Reference:   "REF-" + ticketID,
		HoldID:      "hold-" + ticketID,
		BuyerID:     "buyer-1",
		EventID:     "event-1",
		TierID:      "tier-1",
		OrganizerID: "org-1",
		Quantity:    1,
		Subtotal:    50,
		Total:       50,
		Currency:    "usd",
		Status:      bookingStatus,
		CreatedAt:   time.Now(),
	}
	_, err := f.bunDB.NewInsert().Model(&booking).Exec(ctx)
	require.NoError(t, err)

	token, err := f.signer.Sign(tickets.TokenClaims{
		TicketID:  ticketID,
		BookingID: bookingID,
		TierID:    "tier-1",
		EventID:   "event-1",
	})
	require.NoError(t, err)

	ticket := models.Ticket{
		TicketID:  ticketID,
		Code:      "CODE-" + ticketID,
		BookingID: bookingID,
		TierID:    "tier-1",
		EventID:   "event-1",
		UnitLabel: "General-1",
		Token:     token,
		Status:    ticketStatus,
		IssuedAt:  time.Now(),
	}
	_, err = f.bunDB.NewInsert().Model(&ticket).Exec(ctx)
	require.NoError(t, err)

	return token
}

func TestCheckInAdmitsExactlyOnce(t *testing.T) {
	f := setupGate(t)
	token := f.issueTicket(t, "tk-1", models.BookingConfirmed, models.TicketIssued)

	resp, err := f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token, Gate: "north"})
	require.NoError(t, err)
	assert.Equal(t, "tk-1", resp.TicketID)
	assert.False(t, resp.CheckedInAt.IsZero())

	_, err = f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token, Gate: "south"})
	assert.ErrorIs(t, err, models.ErrAlreadyCheckedIn)

	// Gate metadata from the winning scan is preserved.
	stored, err := (&ticket_db.DB{Bun: f.bunDB}).GetTicketByID(context.Background(), "tk-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketCheckedIn, stored.Status)
	assert.Equal(t, "north", stored.CheckedInGate)
}

func TestCheckInRejectsForgedToken(t *testing.T) {
	f := setupGate(t)

	forger := tickets.NewSigner(forgedKeys{})
	token, err := forger.Sign(tickets.TokenClaims{TicketID: "tk-1", EventID: "event-1"})
	require.NoError(t, err)

	_, err = f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

type forgedKeys struct{}

func (forgedKeys) Current() (keys.SigningKey, error) {
	return keys.SigningKey{ID: "x", Secret: "not-the-gate-secret"}, nil
}

func (forgedKeys) Previous() (keys.SigningKey, bool) { return keys.SigningKey{}, false }

func TestCheckInUnknownTicketLooksForged(t *testing.T) {
	f := setupGate(t)

	token, err := f.signer.Sign(tickets.TokenClaims{TicketID: "ghost", EventID: "event-1"})
	require.NoError(t, err)

	_, err = f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestCheckInRejectsVoidTicket(t *testing.T) {
	f := setupGate(t)
	token := f.issueTicket(t, "tk-void", models.BookingConfirmed, models.TicketVoid)

	_, err := f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.ErrorIs(t, err, models.ErrTicketVoid)
}

func TestCheckInRequiresConfirmedBooking(t *testing.T) {
	f := setupGate(t)
	token := f.issueTicket(t, "tk-cxl", models.BookingCancelled, models.TicketIssued)

	_, err := f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.ErrorIs(t, err, models.ErrBookingNotConfirmed)
}

func TestCheckInOutsideDerivedWindow(t *testing.T) {
	f := setupGate(t)
	// Event starts in three days; the gate opens two hours before.
	f.events.info.StartDate = time.Now().Add(72 * time.Hour)
	token := f.issueTicket(t, "tk-early", models.BookingConfirmed, models.TicketIssued)

	_, err := f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.ErrorIs(t, err, models.ErrEventWindowClosed)
}

func TestCheckInExplicitWindowWins(t *testing.T) {
	f := setupGate(t)
	// Event start would put the derived window out of range, but the
	// organizer opened the gate explicitly.
	f.events.info.StartDate = time.Now().Add(72 * time.Hour)
	f.events.info.CheckInOpens = time.Now().Add(-time.Hour)
	f.events.info.CheckInCloses = time.Now().Add(time.Hour)
	token := f.issueTicket(t, "tk-ex", models.BookingConfirmed, models.TicketIssued)

	_, err := f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.NoError(t, err)
}

func TestCheckInCancelledEvent(t *testing.T) {
	f := setupGate(t)
	f.events.info.Cancelled = true
	token := f.issueTicket(t, "tk-cx", models.BookingConfirmed, models.TicketIssued)

	_, err := f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.ErrorIs(t, err, models.ErrEventWindowClosed)
}

func TestCheckInAllowedWhenEventsUnavailable(t *testing.T) {
	f := setupGate(t)
	f.events.info = nil
	f.events.err = fmt.Errorf("events service down")
	token := f.issueTicket(t, "tk-deg", models.BookingConfirmed, models.TicketIssued)

	_, err := f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.NoError(t, err)
}

func TestVerifyIsDryRun(t *testing.T) {
	f := setupGate(t)
	token := f.issueTicket(t, "tk-dry", models.BookingConfirmed, models.TicketIssued)

	ticket, err := f.svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.TicketIssued, ticket.Status)

	// Verification does not admit: a real check-in still succeeds.
	_, err = f.svc.CheckIn(context.Background(), models.CheckInRequest{Token: token})
	assert.NoError(t, err)
}
