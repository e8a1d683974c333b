package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// DB holds the payment-record repository. One record exists per hold;
// the unique constraint on hold_id is what makes checkout retries reuse
// the intent instead of minting a second charge.
type DB struct {
	Bun bun.IDB
}

func (d *DB) WithDB(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

func (d *DB) CreatePayment(ctx context.Context, payment models.PaymentRecord) error {
	_, err := d.Bun.NewInsert().Model(&payment).Exec(ctx)
	return err
}

func (d *DB) GetPaymentByHoldID(ctx context.Context, holdID string) (*models.PaymentRecord, error) {
	var payment models.PaymentRecord
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("hold_id = ?", holdID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (d *DB) GetPaymentByIntentRef(ctx context.Context, intentRef string) (*models.PaymentRecord, error) {
	var payment models.PaymentRecord
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("intent_ref = ?", intentRef).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (d *DB) SetIntentRef(ctx context.Context, paymentID, intentRef string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.PaymentRecord)(nil)).
		Set("intent_ref = ?", intentRef).
		Set("updated_at = ?", time.Now()).
		Where("payment_id = ?", paymentID).
		Exec(ctx)
	return err
}

// Transition moves the payment record between statuses with a
// conditional update. A duplicate webhook delivery loses the transition
// and is treated as already applied.
func (d *DB) Transition(ctx context.Context, paymentID string, from, to models.PaymentStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.PaymentRecord)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("payment_id = ?", paymentID).
		Where("status = ?", from).
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
