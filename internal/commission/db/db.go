package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) WithDB(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

func (d *DB) CreateEntry(ctx context.Context, entry *models.CommissionEntry) error {
	_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (d *DB) GetEntriesByOrganizer(ctx context.Context, organizerID, period string) ([]models.CommissionEntry, error) {
	var entries []models.CommissionEntry
	q := d.Bun.NewSelect().
		Model(&entries).
		Where("organizer_id = ?", organizerID).
		Order("created_at ASC")
	if period != "" {
		q = q.Where("period = ?", period)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *DB) GetEntriesByBooking(ctx context.Context, bookingID string) ([]models.CommissionEntry, error) {
	var entries []models.CommissionEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Summarize aggregates one organizer's entries for one period. The
// ledger is append-only so the sums are reproducible at any time.
func (d *DB) Summarize(ctx context.Context, organizerID, period string) (*models.SettlementSummary, error) {
	summary := &models.SettlementSummary{
		OrganizerID: organizerID,
		Period:      period,
	}
	err := d.Bun.NewSelect().
		Model((*models.CommissionEntry)(nil)).
		ColumnExpr("COALESCE(SUM(CASE WHEN kind IN ('commission', 'reversal') THEN amount ELSE 0.0 END), 0.0) AS commission").
		ColumnExpr("COALESCE(SUM(CASE WHEN kind = 'penalty' THEN -amount ELSE 0.0 END), 0.0) AS penalties").
		ColumnExpr("COALESCE(SUM(amount), 0.0) AS net").
		Where("organizer_id = ?", organizerID).
		Where("period = ?", period).
		Scan(ctx, &summary.Commission, &summary.Penalties, &summary.Net)
	if err != nil {
		return nil, err
	}
	return summary, nil
}
