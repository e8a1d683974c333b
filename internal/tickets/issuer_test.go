package tickets_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/keys"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/tickets"
)

func setupIssuer(t *testing.T) (*tickets.Issuer, *bun.DB) {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, bunDB.ResetModel(context.Background(), (*models.Ticket)(nil)))

	signer := tickets.NewSigner(&stubKeys{current: keys.SigningKey{ID: "k1", Secret: "issuer-test-secret"}})
	return tickets.NewIssuer(signer, bunDB, logger.NewLogger()), bunDB
}

func issuanceBooking(quantity int) models.Booking {
	return models.Booking{
		BookingID:   "booking-1",
		Reference:   "EFTEST1234",
		HoldID:      "hold-1",
		BuyerID:     "buyer-1",
		EventID:     "event-1",
		TierID:      "tier-1",
		OrganizerID: "org-1",
		Quantity:    quantity,
		Subtotal:    150,
		Total:       150,
		Currency:    "usd",
		Status:      models.BookingConfirmed,
		CreatedAt:   time.Now(),
	}
}

func TestIssueMintsOneTicketPerUnit(t *testing.T) {
	issuer, bunDB := setupIssuer(t)
	ctx := context.Background()

	err := bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		minted, err := issuer.IssueTx(ctx, tx, issuanceBooking(3), "VIP")
		require.NoError(t, err)
		require.Len(t, minted, 3)
		return nil
	})
	require.NoError(t, err)

	var stored []models.Ticket
	require.NoError(t, bunDB.NewSelect().Model(&stored).Order("unit_label ASC").Scan(ctx))
	require.Len(t, stored, 3)

	labels := make([]string, 0, len(stored))
	for _, ticket := range stored {
		labels = append(labels, ticket.UnitLabel)
		assert.Equal(t, models.TicketIssued, ticket.Status)
		assert.Equal(t, 50.0, ticket.PriceAtPurchase)
		assert.NotEmpty(t, ticket.QRCode)

		// Each token round-trips through the gate signer and points at
		// its own ticket.
		claims, err := issuer.Signer().Verify(ticket.Token)
		require.NoError(t, err)
		assert.Equal(t, ticket.TicketID, claims.TicketID)
		assert.Equal(t, "booking-1", claims.BookingID)
		assert.Equal(t, "buyer-1", claims.Subject)
	}
	assert.Equal(t, []string{"VIP-1", "VIP-2", "VIP-3"}, labels)
}

func TestIssueRollsBackWithTransaction(t *testing.T) {
	issuer, bunDB := setupIssuer(t)
	ctx := context.Background()

	err := bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := issuer.IssueTx(ctx, tx, issuanceBooking(2), "VIP")
		require.NoError(t, err)
		return assert.AnError
	})
	require.Error(t, err)

	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestVerifyIssuedDetectsShortfall(t *testing.T) {
	issuer, bunDB := setupIssuer(t)
	ctx := context.Background()

	err := bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := issuer.IssueTx(ctx, tx, issuanceBooking(2), "VIP")
		return err
	})
	require.NoError(t, err)

	assert.NoError(t, issuer.VerifyIssued(ctx, "booking-1", 2))
	assert.ErrorIs(t, issuer.VerifyIssued(ctx, "booking-1", 3), models.ErrPartialIssuance)
}
