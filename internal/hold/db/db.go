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

// WithDB rebinds the repository to another executor (usually a bun.Tx).
func (d *DB) WithDB(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

func (d *DB) CreateHold(ctx context.Context, hold models.Hold) error {
	_, err := d.Bun.NewInsert().Model(&hold).Exec(ctx)
	return err
}

func (d *DB) GetHoldByID(ctx context.Context, id string) (*models.Hold, error) {
	var hold models.Hold
	err := d.Bun.NewSelect().
		Model(&hold).
		Where("hold_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// Transition flips a hold from one status to another in a single
// conditional UPDATE. It reports whether this caller won the
// transition; losers observe false and must not touch inventory.
func (d *DB) Transition(ctx context.Context, holdID string, from, to models.HoldStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Hold)(nil)).
		Set("status = ?", to).
		Where("hold_id = ?", holdID).
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

// TransitionBeforeExpiry is Transition with the additional guard that
// the hold has not passed its deadline. Used for PENDING -> CONFIRMED so
// a payment racing the expiry sweep cannot confirm a dead hold.
func (d *DB) TransitionBeforeExpiry(ctx context.Context, holdID string, from, to models.HoldStatus, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Hold)(nil)).
		Set("status = ?", to).
		Where("hold_id = ?", holdID).
		Where("status = ?", from).
		Where("expires_at > ?", now).
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

// ListDueForExpiry returns pending holds whose deadline has passed.
// Multiple sweepers may pick up the same hold; the transition guard
// makes that harmless.
func (d *DB) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.Hold, error) {
	var holds []models.Hold
	err := d.Bun.NewSelect().
		Model(&holds).
		Where("status = ?", models.HoldPending).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Scan(ctx)
	return holds, err
}

func (d *DB) GetHoldsByBuyer(ctx context.Context, buyerID string) ([]models.Hold, error) {
	var holds []models.Hold
	err := d.Bun.NewSelect().
		Model(&holds).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Scan(ctx)
	return holds, err
}

// ListPendingByTier returns active pending holds against a tier, used by
// refund processing to release reservations tied to a cancelled event.
func (d *DB) ListPendingByTier(ctx context.Context, tierID string) ([]models.Hold, error) {
	var holds []models.Hold
	err := d.Bun.NewSelect().
		Model(&holds).
		Where("tier_id = ?", tierID).
		Where("status = ?", models.HoldPending).
		Scan(ctx)
	return holds, err
}
