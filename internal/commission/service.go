package commission

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/commission/db"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Service keeps the platform's commission ledger. Entries are posted
// inside the same transaction as the booking or refund that motivates
// them, so the ledger never disagrees with booking state.
type Service struct {
	db     *db.DB
	cfg    config.CommissionConfig
	logger *logger.Logger
}

func NewService(bunDB bun.IDB, cfg config.CommissionConfig, log *logger.Logger) *Service {
	return &Service{
		db:     &db.DB{Bun: bunDB},
		cfg:    cfg,
		logger: log,
	}
}

// round2 keeps ledger amounts at cent precision so offsetting entries
// cancel exactly.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PostCommissionTx accrues the platform commission for a confirmed
// booking inside the confirmation transaction.
func (s *Service) PostCommissionTx(ctx context.Context, tx bun.IDB, booking models.Booking) (*models.CommissionEntry, error) {
	now := time.Now()
	entry := &models.CommissionEntry{
		EntryID:     utils.GenerateEntryID(),
		OrganizerID: booking.OrganizerID,
		BookingID:   booking.BookingID,
		Kind:        models.EntryCommission,
		Amount:      round2(booking.Total * s.cfg.Percent / 100),
		Currency:    booking.Currency,
		Period:      models.SettlementPeriod(now),
		CreatedAt:   now,
	}
	if err := s.db.WithDB(tx).CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("post commission for booking %s: %w", booking.BookingID, err)
	}
	s.logger.Info("COMMISSION", fmt.Sprintf("Accrued %.2f %s for organizer %s on booking %s",
		entry.Amount, entry.Currency, entry.OrganizerID, entry.BookingID))
	return entry, nil
}

// ReverseTx offsets previously accrued commission when a booking is
// refunded. gross is the booking value being unwound (refund paid out
// plus any penalty withheld from the buyer), so a partial refund
// reverses a proportional share of the commission.
func (s *Service) ReverseTx(ctx context.Context, tx bun.IDB, booking models.Booking, refundID string, gross float64) (*models.CommissionEntry, error) {
	now := time.Now()
	entry := &models.CommissionEntry{
		EntryID:     utils.GenerateEntryID(),
		OrganizerID: booking.OrganizerID,
		BookingID:   booking.BookingID,
		RefundID:    refundID,
		Kind:        models.EntryReversal,
		Amount:      round2(-gross * s.cfg.Percent / 100),
		Currency:    booking.Currency,
		Period:      models.SettlementPeriod(now),
		CreatedAt:   now,
	}
	if err := s.db.WithDB(tx).CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("reverse commission for booking %s: %w", booking.BookingID, err)
	}
	s.logger.Info("COMMISSION", fmt.Sprintf("Reversed %.2f %s for organizer %s on refund %s",
		-entry.Amount, entry.Currency, entry.OrganizerID, refundID))
	return entry, nil
}

// PostPenalty charges the organizer for cancelling an event. The charge
// is either a flat amount or a percent of the gross refunded value, per
// configuration. One entry covers the whole cancellation, not one per
// affected booking.
func (s *Service) PostPenalty(ctx context.Context, organizerID, currency string, gross float64) (*models.CommissionEntry, error) {
	var amount float64
	switch s.cfg.PenaltyMode {
	case config.PenaltyFlat:
		amount = s.cfg.PenaltyValue
	default:
		amount = gross * s.cfg.PenaltyValue / 100
	}
	now := time.Now()
	entry := &models.CommissionEntry{
		EntryID:     utils.GenerateEntryID(),
		OrganizerID: organizerID,
		Kind:        models.EntryPenalty,
		Amount:      round2(-amount),
		Currency:    currency,
		Period:      models.SettlementPeriod(now),
		CreatedAt:   now,
	}
	if err := s.db.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("post penalty for organizer %s: %w", organizerID, err)
	}
	s.logger.Warn("COMMISSION", fmt.Sprintf("Charged %.2f %s cancellation penalty to organizer %s",
		amount, currency, organizerID))
	return entry, nil
}

// PostCorrection records an operator-initiated adjustment. The original
// entries are never edited; the correction is a new offsetting row.
func (s *Service) PostCorrection(ctx context.Context, organizerID string, amount float64, currency string) (*models.CommissionEntry, error) {
	now := time.Now()
	entry := &models.CommissionEntry{
		EntryID:     utils.GenerateEntryID(),
		OrganizerID: organizerID,
		Kind:        models.EntryCorrection,
		Amount:      round2(amount),
		Currency:    currency,
		Period:      models.SettlementPeriod(now),
		CreatedAt:   now,
	}
	if err := s.db.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("post correction for organizer %s: %w", organizerID, err)
	}
	s.logger.Info("COMMISSION", fmt.Sprintf("Posted correction of %.2f %s for organizer %s",
		entry.Amount, entry.Currency, organizerID))
	return entry, nil
}

// Settle aggregates one organizer's ledger for a settlement period.
func (s *Service) Settle(ctx context.Context, organizerID, period string) (*models.SettlementSummary, error) {
	return s.db.Summarize(ctx, organizerID, period)
}

// Entries lists the raw ledger rows behind a settlement summary.
func (s *Service) Entries(ctx context.Context, organizerID, period string) ([]models.CommissionEntry, error) {
	return s.db.GetEntriesByOrganizer(ctx, organizerID, period)
}
