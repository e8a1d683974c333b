package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) WithDB(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

func (d *DB) CreateRefund(ctx context.Context, refund models.Refund) error {
	_, err := d.Bun.NewInsert().Model(&refund).Exec(ctx)
	return err
}

func (d *DB) GetRefundByID(ctx context.Context, id string) (*models.Refund, error) {
	var refund models.Refund
	err := d.Bun.NewSelect().
		Model(&refund).
		Where("refund_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (d *DB) GetRefundByBooking(ctx context.Context, bookingID string) (*models.Refund, error) {
	var refund models.Refund
	err := d.Bun.NewSelect().
		Model(&refund).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}
