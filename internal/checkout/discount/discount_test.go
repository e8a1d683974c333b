package discount_test

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

	"ms-booking/internal/checkout/discount"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

func setupDiscountDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx, (*models.DiscountCode)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.DiscountRedemption)(nil)))
	return bunDB
}

func seedCode(t *testing.T, bunDB *bun.DB, code models.DiscountCode) {
	if code.ValidFrom.IsZero() {
		code.ValidFrom = time.Now().Add(-time.Hour)
	}
	if code.ValidUntil.IsZero() {
		code.ValidUntil = time.Now().Add(time.Hour)
	}
	code.CreatedAt = time.Now()
	_, err := bunDB.NewInsert().Model(&code).Exec(context.Background())
	require.NoError(t, err)
}

func TestRedeemPercentageCappedAtMaxDiscount(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())
	seedCode(t, bunDB, models.DiscountCode{
		Code: "SAVE20", Type: models.DiscountPercentage, Value: 20, MaxDiscount: 15, Active: true,
	})

	result, err := svc.Redeem(context.Background(), bunDB, "SAVE20", "buyer-1", "hold-1", 200)
	require.NoError(t, err)
	assert.Equal(t, 15.0, result.Amount)
}

func TestRedeemFlatNeverExceedsSubtotal(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())
	seedCode(t, bunDB, models.DiscountCode{
		Code: "FLAT50", Type: models.DiscountFlatOff, Value: 50, Active: true,
	})

	result, err := svc.Redeem(context.Background(), bunDB, "FLAT50", "buyer-1", "hold-1", 30)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result.Amount)
}

func TestRedeemUnknownCode(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())

	_, err := svc.Redeem(context.Background(), bunDB, "NOPE", "buyer-1", "hold-1", 100)
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)
}

func TestRedeemInactiveCode(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())
	seedCode(t, bunDB, models.DiscountCode{
		Code: "OLD", Type: models.DiscountFlatOff, Value: 5, Active: false,
	})

	_, err := svc.Redeem(context.Background(), bunDB, "OLD", "buyer-1", "hold-1", 100)
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)
}

func TestRedeemOutsideValidityWindow(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())
	seedCode(t, bunDB, models.DiscountCode{
		Code: "EARLY", Type: models.DiscountFlatOff, Value: 5, Active: true,
		ValidFrom:  time.Now().Add(time.Hour),
		ValidUntil: time.Now().Add(2 * time.Hour),
	})

	_, err := svc.Redeem(context.Background(), bunDB, "EARLY", "buyer-1", "hold-1", 100)
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)
}

func TestRedeemBelowMinOrder(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())
	seedCode(t, bunDB, models.DiscountCode{
		Code: "BIG", Type: models.DiscountFlatOff, Value: 10, MinOrder: 100, Active: true,
	})

	_, err := svc.Redeem(context.Background(), bunDB, "BIG", "buyer-1", "hold-1", 99)
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)
}

func TestRedeemGlobalUsageCap(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())
	seedCode(t, bunDB, models.DiscountCode{
		Code: "ONCE", Type: models.DiscountFlatOff, Value: 5, UsageLimit: 1, Active: true,
	})

	_, err := svc.Redeem(context.Background(), bunDB, "ONCE", "buyer-1", "hold-1", 100)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), bunDB, "ONCE", "buyer-2", "hold-2", 100)
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)
}

func TestRedeemPerBuyerCap(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())
	seedCode(t, bunDB, models.DiscountCode{
		Code: "EACH", Type: models.DiscountFlatOff, Value: 5, PerBuyerLimit: 1, Active: true,
	})

	_, err := svc.Redeem(context.Background(), bunDB, "EACH", "buyer-1", "hold-1", 100)
	require.NoError(t, err)

	// Same buyer on a fresh hold is over the per-buyer cap.
	_, err = svc.Redeem(context.Background(), bunDB, "EACH", "buyer-1", "hold-2", 100)
	assert.ErrorIs(t, err, models.ErrInvalidDiscount)

	// A different buyer is unaffected.
	_, err = svc.Redeem(context.Background(), bunDB, "EACH", "buyer-2", "hold-3", 100)
	assert.NoError(t, err)
}

func TestReleaseRestoresUsage(t *testing.T) {
	bunDB := setupDiscountDB(t)
	svc := discount.NewService(logger.NewLogger())
	seedCode(t, bunDB, models.DiscountCode{
		Code: "RETRY", Type: models.DiscountFlatOff, Value: 5, UsageLimit: 1, PerBuyerLimit: 1, Active: true,
	})

	_, err := svc.Redeem(context.Background(), bunDB, "RETRY", "buyer-1", "hold-1", 100)
	require.NoError(t, err)

	require.NoError(t, svc.Release(context.Background(), bunDB, "RETRY", "hold-1"))

	// The buyer can use the code again after a failed payment.
	_, err = svc.Redeem(context.Background(), bunDB, "RETRY", "buyer-1", "hold-1", 100)
	assert.NoError(t, err)

	// Releasing twice credits nothing extra.
	require.NoError(t, svc.Release(context.Background(), bunDB, "RETRY", "hold-1"))
	require.NoError(t, svc.Release(context.Background(), bunDB, "RETRY", "hold-1"))

	var dc models.DiscountCode
	err = bunDB.NewSelect().Model(&dc).Where("code = ?", "RETRY").Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, dc.TimesUsed)
}
