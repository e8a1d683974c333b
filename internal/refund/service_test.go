package refund_test

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

	"ms-booking/internal/commission"
	"ms-booking/internal/config"
	"ms-booking/internal/inventory"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/refund"
	ticket_db "ms-booking/internal/tickets/db"
)

type stubEvents struct {
	info *models.EventInfo
	err  error
}

func (s *stubEvents) FetchEvent(ctx context.Context, eventID string) (*models.EventInfo, error) {
	return s.info, s.err
}

type refundFixture struct {
	bunDB    *bun.DB
	ledger   *inventory.Ledger
	svc      *refund.Service
	events   *stubEvents
	ticketDB *ticket_db.DB
}

func setupRefund(t *testing.T) *refundFixture {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.TicketTier)(nil),
		(*models.Hold)(nil),
		(*models.Booking)(nil),
		(*models.Ticket)(nil),
		(*models.Refund)(nil),
		(*models.CommissionEntry)(nil),
	} {
		require.NoError(t, bunDB.ResetModel(ctx, model))
	}

	log := logger.NewLogger()
	ledger := inventory.NewLedger(bunDB)
	comm := commission.NewService(bunDB, config.CommissionConfig{
		Percent: 5, PenaltyMode: config.PenaltyPercent, PenaltyValue: 10,
	}, log)
	events := &stubEvents{info: &models.EventInfo{
		EventID:   "event-1",
		StartDate: time.Now().Add(10 * 24 * time.Hour),
	}}
	producer := kafka.NewProducer(config.KafkaConfig{Enabled: false}, log)
	policy := []config.PolicyTier{
		{Before: 168 * time.Hour, Percent: 100},
		{Before: 24 * time.Hour, Percent: 50},
		{Before: 0, Percent: 0},
	}

	svc := refund.NewService(bunDB, ledger, comm, events, producer, policy, log)
	return &refundFixture{
		bunDB:    bunDB,
		ledger:   ledger,
		svc:      svc,
		events:   events,
		ticketDB: &ticket_db.DB{Bun: bunDB},
	}
}

// seedConfirmedBooking creates a tier with sold units, a confirmed
// booking of size quantity and its issued tickets.
func (f *refundFixture) seedConfirmedBooking(t *testing.T, bookingID string, quantity int, total float64) *models.Booking {
	ctx := context.Background()

	if tier, _ := f.ledger.GetTier(ctx, "tier-1"); tier == nil {
		require.NoError(t, f.ledger.CreateTier(ctx, models.TicketTier{
			TierID:      "tier-1",
			EventID:     "event-1",
			OrganizerID: "org-1",
			Name:        "General",
			Price:       total / float64(quantity),
			Currency:    "usd",
			Capacity:    20,
			CreatedAt:   time.Now(),
		}))
	}
	require.NoError(t, f.ledger.Reserve(ctx, "tier-1", quantity))
	require.NoError(t, f.ledger.Commit(ctx, "tier-1", quantity))

	booking := models.Booking{
		BookingID:   bookingID,
		Reference:   "REF-" + bookingID,
		HoldID:      "hold-" + bookingID,
		BuyerID:     "buyer-1",
		EventID:     "event-1",
		TierID:      "tier-1",
		OrganizerID: "org-1",
		Quantity:    quantity,
		Subtotal:    total,
		Total:       total,
		Currency:    "usd",
		Status:      models.BookingConfirmed,
		ConfirmedAt: time.Now(),
		CreatedAt:   time.Now(),
	}
	_, err := f.bunDB.NewInsert().Model(&booking).Exec(ctx)
	require.NoError(t, err)

	for i := 1; i <= quantity; i++ {
		ticket := models.Ticket{
			TicketID:  fmt.Sprintf("%s-tk-%d", bookingID, i),
			Code:      fmt.Sprintf("CODE-%s-%d", bookingID, i),
			BookingID: bookingID,
			TierID:    "tier-1",
			EventID:   "event-1",
			UnitLabel: fmt.Sprintf("General-%d", i),
			Token:     "token",
			Status:    models.TicketIssued,
			IssuedAt:  time.Now(),
		}
		_, err := f.bunDB.NewInsert().Model(&ticket).Exec(ctx)
		require.NoError(t, err)
	}
	return &booking
}

func TestEvaluatePolicy(t *testing.T) {
	f := setupRefund(t)

	cases := []struct {
		timeToEvent time.Duration
		percent     float64
	}{
		{10 * 24 * time.Hour, 100},
		{168 * time.Hour, 100},
		{48 * time.Hour, 50},
		{24 * time.Hour, 50},
		{2 * time.Hour, 0},
		{-time.Hour, 0},
	}
	for _, tc := range cases {
		tier := f.svc.EvaluatePolicy(tc.timeToEvent)
		assert.Equalf(t, tc.percent, tier.Percent, "timeToEvent=%s", tc.timeToEvent)
	}
}

func TestCancelBookingFullRefund(t *testing.T) {
	f := setupRefund(t)
	booking := f.seedConfirmedBooking(t, "bk-1", 2, 100)

	resp, err := f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-1", "plans changed")
	require.NoError(t, err)
	assert.Equal(t, 100.0, resp.Amount)
	assert.Equal(t, 0.0, resp.Penalty)
	assert.Empty(t, resp.SkippedTickets)

	ctx := context.Background()
	var stored models.Booking
	require.NoError(t, f.bunDB.NewSelect().Model(&stored).Where("booking_id = ?", booking.BookingID).Scan(ctx))
	assert.Equal(t, models.BookingCancelled, stored.Status)
	assert.False(t, stored.CancelledAt.IsZero())

	issued, err := f.ticketDB.GetTicketsByBooking(ctx, booking.BookingID)
	require.NoError(t, err)
	for _, ticket := range issued {
		assert.Equal(t, models.TicketVoid, ticket.Status)
	}

	tier, err := f.ledger.GetTier(ctx, "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 20, tier.Available)
	assert.Equal(t, 0, tier.Sold)

	// The commission reversal offsets the full accrual.
	var entries []models.CommissionEntry
	require.NoError(t, f.bunDB.NewSelect().Model(&entries).Where("kind = ?", models.EntryReversal).Scan(ctx))
	require.Len(t, entries, 1)
	assert.Equal(t, -5.0, entries[0].Amount)
	assert.Equal(t, resp.RefundID, entries[0].RefundID)
}

func TestCancelBookingHalfRefund(t *testing.T) {
	f := setupRefund(t)
	f.events.info.StartDate = time.Now().Add(48 * time.Hour)
	booking := f.seedConfirmedBooking(t, "bk-1", 2, 100)

	resp, err := f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-1", "")
	require.NoError(t, err)
	assert.Equal(t, 50.0, resp.Amount)
	// The withheld half is recorded on the refund as the penalty.
	assert.Equal(t, 50.0, resp.Penalty)

	// The reversal is proportional to the refunded share.
	var entries []models.CommissionEntry
	require.NoError(t, f.bunDB.NewSelect().Model(&entries).
		Where("kind = ?", models.EntryReversal).Scan(context.Background()))
	require.Len(t, entries, 1)
	assert.Equal(t, -2.5, entries[0].Amount)
}

func TestCancelBookingInsideNoRefundWindow(t *testing.T) {
	f := setupRefund(t)
	f.events.info.StartDate = time.Now().Add(2 * time.Hour)
	booking := f.seedConfirmedBooking(t, "bk-1", 1, 50)

	resp, err := f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-1", "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Amount)
	assert.Equal(t, 50.0, resp.Penalty)

	// Even a zero refund unwinds the booking and restocks the seats.
	tier, err := f.ledger.GetTier(context.Background(), "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 20, tier.Available)
}

func TestCancelBookingSkipsCheckedInTickets(t *testing.T) {
	f := setupRefund(t)
	booking := f.seedConfirmedBooking(t, "bk-1", 2, 100)

	won, err := f.ticketDB.CheckIn(context.Background(), "bk-1-tk-1", "north", "op-1", time.Now())
	require.NoError(t, err)
	require.True(t, won)

	resp, err := f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"bk-1-tk-1"}, resp.SkippedTickets)

	// Only the voided seat returns to sale.
	tier, err := f.ledger.GetTier(context.Background(), "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 19, tier.Available)
	assert.Equal(t, 1, tier.Sold)

	used, err := f.ticketDB.GetTicketByID(context.Background(), "bk-1-tk-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketCheckedIn, used.Status)
}

func TestCancelBookingTwiceFails(t *testing.T) {
	f := setupRefund(t)
	booking := f.seedConfirmedBooking(t, "bk-1", 1, 50)

	_, err := f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-1", "")
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-1", "")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Capacity came back exactly once.
	tier, err := f.ledger.GetTier(context.Background(), "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 20, tier.Available)
}

func TestCancelBookingRejectsForeignBuyer(t *testing.T) {
	f := setupRefund(t)
	booking := f.seedConfirmedBooking(t, "bk-1", 1, 50)

	_, err := f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-2", "")
	assert.Error(t, err)
}

func TestCancelBookingFlaggedForReconciliation(t *testing.T) {
	f := setupRefund(t)
	booking := f.seedConfirmedBooking(t, "bk-1", 1, 50)

	_, err := f.bunDB.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("needs_reconciliation = ?", true).
		Where("booking_id = ?", booking.BookingID).
		Exec(context.Background())
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-1", "")
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestCancelEventRefundsAllWithSinglePenalty(t *testing.T) {
	f := setupRefund(t)
	f.seedConfirmedBooking(t, "bk-1", 1, 100)
	f.seedConfirmedBooking(t, "bk-2", 2, 100)
	f.seedConfirmedBooking(t, "bk-3", 1, 100)

	responses, err := f.svc.CancelEvent(context.Background(), "event-1", "venue flooded")
	require.NoError(t, err)
	require.Len(t, responses, 3)
	for _, resp := range responses {
		assert.Equal(t, 100.0, resp.Amount)
	}

	ctx := context.Background()
	var penalties []models.CommissionEntry
	require.NoError(t, f.bunDB.NewSelect().Model(&penalties).
		Where("kind = ?", models.EntryPenalty).Scan(ctx))
	require.Len(t, penalties, 1)
	assert.Equal(t, -30.0, penalties[0].Amount)
	assert.Equal(t, "org-1", penalties[0].OrganizerID)

	var reversals []models.CommissionEntry
	require.NoError(t, f.bunDB.NewSelect().Model(&reversals).
		Where("kind = ?", models.EntryReversal).Scan(ctx))
	assert.Len(t, reversals, 3)

	tier, err := f.ledger.GetTier(ctx, "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 20, tier.Available)
	assert.Equal(t, 0, tier.Sold)
}

func TestCancelEventSkipsStuckBookingAndContinues(t *testing.T) {
	f := setupRefund(t)
	f.seedConfirmedBooking(t, "bk-1", 1, 100)
	stuck := f.seedConfirmedBooking(t, "bk-2", 1, 100)

	_, err := f.bunDB.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("needs_reconciliation = ?", true).
		Where("booking_id = ?", stuck.BookingID).
		Exec(context.Background())
	require.NoError(t, err)

	responses, err := f.svc.CancelEvent(context.Background(), "event-1", "")
	require.NoError(t, err)
	assert.Len(t, responses, 1)

	// The penalty covers only what was actually refunded.
	var penalties []models.CommissionEntry
	require.NoError(t, f.bunDB.NewSelect().Model(&penalties).
		Where("kind = ?", models.EntryPenalty).Scan(context.Background()))
	require.Len(t, penalties, 1)
	assert.Equal(t, -10.0, penalties[0].Amount)
}

func TestCancelEventReleasesPendingHolds(t *testing.T) {
	f := setupRefund(t)
	ctx := context.Background()
	f.seedConfirmedBooking(t, "bk-1", 2, 100)

	// A buyer mid-checkout when the organizer cancels: 3 units held
	// against the tier, hold still pending and nowhere near its TTL.
	require.NoError(t, f.ledger.Reserve(ctx, "tier-1", 3))
	pending := models.Hold{
		HoldID:    "hold-pending",
		TierID:    "tier-1",
		EventID:   "event-1",
		BuyerID:   "buyer-2",
		Quantity:  3,
		Status:    models.HoldPending,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	_, err := f.bunDB.NewInsert().Model(&pending).Exec(ctx)
	require.NoError(t, err)

	responses, err := f.svc.CancelEvent(ctx, "event-1", "venue unavailable")
	require.NoError(t, err)
	require.Len(t, responses, 1)

	var hold models.Hold
	require.NoError(t, f.bunDB.NewSelect().Model(&hold).
		Where("hold_id = ?", "hold-pending").Scan(ctx))
	assert.Equal(t, models.HoldCancelled, hold.Status)

	// Both the sold and the held units are back in the pool.
	tier, err := f.ledger.GetTier(ctx, "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 20, tier.Available)
	assert.Equal(t, 0, tier.Held)
	assert.Equal(t, 0, tier.Sold)
}

func TestGetByBooking(t *testing.T) {
	f := setupRefund(t)
	booking := f.seedConfirmedBooking(t, "bk-1", 1, 50)

	got, err := f.svc.GetByBooking(context.Background(), booking.BookingID)
	require.NoError(t, err)
	assert.Nil(t, got)

	resp, err := f.svc.CancelBooking(context.Background(), booking.BookingID, "buyer-1", "")
	require.NoError(t, err)

	got, err = f.svc.GetByBooking(context.Background(), booking.BookingID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resp.RefundID, got.RefundID)
}
