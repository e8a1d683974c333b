package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) WithDB(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

func (d *DB) CreateBooking(ctx context.Context, booking models.Booking) error {
	_, err := d.Bun.NewInsert().Model(&booking).Exec(ctx)
	return err
}

func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetBookingByHoldID(ctx context.Context, holdID string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("hold_id = ?", holdID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetBookingsByBuyer(ctx context.Context, buyerID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Scan(ctx)
	return bookings, err
}

// GetConfirmedByEvent returns every confirmed booking for an event,
// used by organizer-initiated cancellation.
func (d *DB) GetConfirmedByEvent(ctx context.Context, eventID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("event_id = ?", eventID).
		Where("status = ?", models.BookingConfirmed).
		Scan(ctx)
	return bookings, err
}

// Transition flips booking status with a conditional update; the caller
// must treat a false return as "someone else got there first".
func (d *DB) Transition(ctx context.Context, bookingID string, from, to models.BookingStatus, at time.Time) (bool, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", to).
		Where("booking_id = ?", bookingID).
		Where("status = ?", from)
	if to == models.BookingCancelled {
		q = q.Set("cancelled_at = ?", at)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// FlagForReconciliation marks a booking whose issuance or ledger
// postings ended in an unknown state. Flagged bookings are skipped by
// automatic refund and release paths.
func (d *DB) FlagForReconciliation(ctx context.Context, bookingID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("needs_reconciliation = ?", true).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return err
}
