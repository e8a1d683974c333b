package discount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Service validates and redeems discount codes. Redemption is atomic
// with validation: the global-cap check rides on a conditional
// increment of times_used, and because that increment takes the code's
// row lock, the per-buyer count that follows is serialized per code.
// Callers run Redeem inside a transaction so a failed checkout rolls
// the redemption back with everything else.
type Service struct {
	logger *logger.Logger
}

func NewService(log *logger.Logger) *Service {
	return &Service{logger: log}
}

// Result carries the outcome of a redemption.
type Result struct {
	Code   string
	Amount float64
}

// Redeem validates the code for this buyer and order, increments the
// redemption count and records the redemption, all inside the caller's
// transaction. Every rejection surfaces as ErrInvalidDiscount; the
// specific reason is logged, not leaked to the buyer.
func (s *Service) Redeem(ctx context.Context, tx bun.IDB, code, buyerID, holdID string, subtotal float64) (*Result, error) {
	var dc models.DiscountCode
	err := tx.NewSelect().
		Model(&dc).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("DISCOUNT", fmt.Sprintf("Unknown discount code %q", code))
		return nil, models.ErrInvalidDiscount
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch {
	case !dc.Active:
		s.logger.Warn("DISCOUNT", fmt.Sprintf("Code %s is inactive", code))
		return nil, models.ErrInvalidDiscount
	case !dc.WithinWindow(now):
		s.logger.Warn("DISCOUNT", fmt.Sprintf("Code %s outside validity window", code))
		return nil, models.ErrInvalidDiscount
	case dc.MinOrder > 0 && subtotal < dc.MinOrder:
		s.logger.Warn("DISCOUNT", fmt.Sprintf("Code %s requires min order %.2f, got %.2f", code, dc.MinOrder, subtotal))
		return nil, models.ErrInvalidDiscount
	}

	// Global cap: check and increment in one statement. This also takes
	// the row lock that serializes concurrent redemptions of the code.
	res, err := tx.NewUpdate().
		Model((*models.DiscountCode)(nil)).
		Set("times_used = times_used + 1").
		Where("code = ?", code).
		Where("usage_limit = 0 OR times_used < usage_limit").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		s.logger.Warn("DISCOUNT", fmt.Sprintf("Code %s usage limit reached", code))
		return nil, models.ErrInvalidDiscount
	}

	if dc.PerBuyerLimit > 0 {
		count, err := tx.NewSelect().
			Model((*models.DiscountRedemption)(nil)).
			Where("code = ?", code).
			Where("buyer_id = ?", buyerID).
			Count(ctx)
		if err != nil {
			return nil, err
		}
		if count >= dc.PerBuyerLimit {
			s.logger.Warn("DISCOUNT", fmt.Sprintf("Buyer %s exhausted per-buyer limit for code %s", buyerID, code))
			return nil, models.ErrInvalidDiscount
		}
	}

	amount := dc.Amount(subtotal)
	redemption := models.DiscountRedemption{
		RedemptionID: uuid.NewString(),
		Code:         code,
		BuyerID:      buyerID,
		HoldID:       holdID,
		Amount:       amount,
		CreatedAt:    now,
	}
	if _, err := tx.NewInsert().Model(&redemption).Exec(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("DISCOUNT", fmt.Sprintf("Code %s redeemed by buyer %s for %.2f off", code, buyerID, amount))
	return &Result{Code: code, Amount: amount}, nil
}

// Release undoes a redemption after a synchronous payment failure so
// the buyer can retry with the same code. It is a compensating update,
// not a rollback: the checkout transaction that redeemed the code has
// already committed by the time the gateway answers.
func (s *Service) Release(ctx context.Context, tx bun.IDB, code, holdID string) error {
	res, err := tx.NewDelete().
		Model((*models.DiscountRedemption)(nil)).
		Where("code = ?", code).
		Where("hold_id = ?", holdID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Already released, nothing to credit back.
		return nil
	}
	_, err = tx.NewUpdate().
		Model((*models.DiscountCode)(nil)).
		Set("times_used = times_used - 1").
		Where("code = ?", code).
		Where("times_used > 0").
		Exec(ctx)
	return err
}
