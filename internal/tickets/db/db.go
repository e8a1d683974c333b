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

// CreateTickets inserts a booking's tickets in one statement so
// issuance is all-or-nothing within the caller's transaction.
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketsByBooking(ctx context.Context, bookingID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("booking_id = ?", bookingID).
		Order("unit_label ASC").
		Scan(ctx)
	return tickets, err
}

func (d *DB) CountByBooking(ctx context.Context, bookingID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("booking_id = ?", bookingID).
		Count(ctx)
}

// CheckIn performs the ISSUED -> CHECKED_IN transition and records gate
// metadata in one conditional update. Two scanners racing on the same
// ticket get exactly one true and one false.
func (d *DB) CheckIn(ctx context.Context, ticketID, gate, operator string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketCheckedIn).
		Set("checked_in_at = ?", at).
		Set("checked_in_gate = ?", gate).
		Set("checked_in_by = ?", operator).
		Where("ticket_id = ?", ticketID).
		Where("status = ?", models.TicketIssued).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Void flips ISSUED -> VOID. Checked-in tickets lose the transition and
// stay as they are; the refund path reports them instead of voiding.
func (d *DB) Void(ctx context.Context, ticketID string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketVoid).
		Set("voided_at = ?", at).
		Where("ticket_id = ?", ticketID).
		Where("status = ?", models.TicketIssued).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
