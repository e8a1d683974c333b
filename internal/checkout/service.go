package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	booking_db "ms-booking/internal/booking/db"
	"ms-booking/internal/checkout/db"
	"ms-booking/internal/checkout/discount"
	checkout_redis "ms-booking/internal/checkout/redis"
	"ms-booking/internal/commission"
	"ms-booking/internal/hold"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/tickets"
	"ms-booking/internal/utils"
)

// Service orchestrates the promotion of a hold into a booking. The
// critical ordering: price and redeem the discount first, call the
// payment gateway with no database locks held, then run the hold
// confirmation, booking insert, ticket issuance and commission posting
// in a single transaction. A payment that succeeds after the hold
// expired is flagged for refund, never silently confirmed.
type Service struct {
	bunDB      *bun.DB
	holds      *hold.Service
	payments   *db.DB
	bookings   *booking_db.DB
	discounts  *discount.Service
	issuer     *tickets.Issuer
	commission *commission.Service
	gateway    PaymentClient
	lock       *checkout_redis.Lock
	producer   *kafka.Producer
	currency   string
	logger     *logger.Logger
}

func NewService(
	bunDB *bun.DB,
	holds *hold.Service,
	issuer *tickets.Issuer,
	comm *commission.Service,
	gateway PaymentClient,
	lock *checkout_redis.Lock,
	producer *kafka.Producer,
	currency string,
	log *logger.Logger,
) *Service {
	return &Service{
		bunDB:      bunDB,
		holds:      holds,
		payments:   &db.DB{Bun: bunDB},
		bookings:   &booking_db.DB{Bun: bunDB},
		discounts:  discount.NewService(log),
		issuer:     issuer,
		commission: comm,
		gateway:    gateway,
		lock:       lock,
		producer:   producer,
		currency:   currency,
		logger:     log,
	}
}

// Checkout prices the hold, charges the buyer and promotes the hold to
// a confirmed booking. Retrying after a payment failure is safe: the
// hold stays PENDING, the discount redemption is compensated and the
// gateway intent is reused through its idempotency key.
func (s *Service) Checkout(ctx context.Context, buyerID string, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	lockToken := uuid.NewString()
	acquired, err := s.lock.Acquire(ctx, req.HoldID, lockToken)
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("checkout already in progress for hold %s: %w", req.HoldID, models.ErrInvalidState)
	}
	defer func() {
		if rerr := s.lock.Release(context.WithoutCancel(ctx), req.HoldID, lockToken); rerr != nil {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Failed to release checkout lock for hold %s: %v", req.HoldID, rerr))
		}
	}()

	// A booking already promoted for this hold makes the retry a no-op.
	if existing, err := s.bookings.GetBookingByHoldID(ctx, req.HoldID); err != nil {
		return nil, err
	} else if existing != nil {
		return bookingResponse(existing), nil
	}

	holdRec, err := s.holds.ValidatePending(ctx, req.HoldID)
	if err != nil {
		return nil, err
	}
	if holdRec.BuyerID != buyerID {
		return nil, fmt.Errorf("hold %s does not belong to buyer %s", req.HoldID, buyerID)
	}

	tier, err := s.holds.Ledger().GetTier(ctx, holdRec.TierID)
	if err != nil {
		return nil, err
	}

	subtotal := tier.Price * float64(holdRec.Quantity)
	for _, addon := range req.AddOns {
		subtotal += addon.UnitPrice * float64(addon.Quantity)
	}

	payment, err := s.preparePayment(ctx, holdRec, req, subtotal)
	if err != nil {
		return nil, err
	}

	// Free orders never touch the gateway.
	if payment.Amount <= 0 {
		if _, err := s.payments.Transition(ctx, payment.PaymentID, models.PaymentPending, models.PaymentSucceeded); err != nil {
			return nil, err
		}
		booking, err := s.promote(ctx, holdRec.HoldID, payment)
		if err != nil {
			return nil, err
		}
		return bookingResponse(booking), nil
	}

	// Gateway call runs with no database locks held.
	status, err := s.gateway.Confirm(ctx, payment.IntentRef, req.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("confirm payment for hold %s: %w", holdRec.HoldID, err)
	}

	switch status {
	case models.PaymentSucceeded:
		if _, err := s.payments.Transition(ctx, payment.PaymentID, models.PaymentPending, models.PaymentSucceeded); err != nil {
			return nil, err
		}
		booking, err := s.promote(ctx, holdRec.HoldID, payment)
		if err != nil {
			return nil, err
		}
		return bookingResponse(booking), nil

	case models.PaymentFailed:
		s.failPayment(ctx, payment)
		return nil, models.ErrPaymentFailed

	default:
		// Processing or requires buyer action. The webhook path finishes
		// the promotion when the gateway reports the outcome.
		s.logger.Info("CHECKOUT", fmt.Sprintf("Payment %s for hold %s pending gateway outcome", payment.PaymentID, holdRec.HoldID))
		return &models.CheckoutResponse{
			Total:      payment.Amount,
			Discount:   payment.DiscountAmount,
			Status:     string(models.PaymentPending),
			PaymentRef: payment.IntentRef,
		}, nil
	}
}

// preparePayment redeems the discount, snapshots the pricing onto the
// payment record and creates the gateway intent. Calling it again for
// the same hold reuses the stored record and intent.
func (s *Service) preparePayment(ctx context.Context, holdRec *models.Hold, req models.CheckoutRequest, subtotal float64) (*models.PaymentRecord, error) {
	existing, err := s.payments.GetPaymentByHoldID(ctx, holdRec.HoldID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.PaymentSucceeded {
			return existing, nil
		}
		if existing.Status == models.PaymentFailed {
			// Previous attempt failed; allow the retry to continue on the
			// same record.
			if _, err := s.payments.Transition(ctx, existing.PaymentID, models.PaymentFailed, models.PaymentPending); err != nil {
				return nil, err
			}
			existing.Status = models.PaymentPending
		}
		if existing.IntentRef != "" {
			return existing, nil
		}
	}

	var discountAmount float64
	var discountCode string
	if req.DiscountCode != "" {
		err := s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			result, err := s.discounts.Redeem(ctx, tx, req.DiscountCode, holdRec.BuyerID, holdRec.HoldID, subtotal)
			if err != nil {
				return err
			}
			discountAmount = result.Amount
			discountCode = result.Code
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	total := subtotal - discountAmount
	if total < 0 {
		total = 0
	}

	payment := existing
	if payment == nil {
		now := time.Now()
		payment = &models.PaymentRecord{
			PaymentID:      uuid.NewString(),
			HoldID:         holdRec.HoldID,
			Amount:         total,
			Currency:       s.currency,
			Status:         models.PaymentPending,
			Subtotal:       subtotal,
			DiscountCode:   discountCode,
			DiscountAmount: discountAmount,
			AddOns:         req.AddOns,
			CreatedAt:      now,
		}
		if err := s.payments.CreatePayment(ctx, *payment); err != nil {
			return nil, err
		}
	}

	if payment.Amount > 0 && payment.IntentRef == "" {
		intentRef, err := s.gateway.CreateIntent(ctx, payment.Amount, payment.Currency,
			"hold:"+holdRec.HoldID, map[string]string{
				"hold_id":  holdRec.HoldID,
				"buyer_id": holdRec.BuyerID,
				"event_id": holdRec.EventID,
			})
		if err != nil {
			return nil, fmt.Errorf("create payment intent for hold %s: %w", holdRec.HoldID, err)
		}
		if err := s.payments.SetIntentRef(ctx, payment.PaymentID, intentRef); err != nil {
			return nil, err
		}
		payment.IntentRef = intentRef
	}

	return payment, nil
}

// failPayment records the failure and compensates the discount
// redemption so the buyer can retry with the same code.
func (s *Service) failPayment(ctx context.Context, payment *models.PaymentRecord) {
	won, err := s.payments.Transition(ctx, payment.PaymentID, models.PaymentPending, models.PaymentFailed)
	if err != nil {
		s.logger.Error("CHECKOUT", fmt.Sprintf("Failed to record payment failure %s: %v", payment.PaymentID, err))
		return
	}
	if !won {
		return
	}
	if payment.DiscountCode == "" {
		return
	}
	err = s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.discounts.Release(ctx, tx, payment.DiscountCode, payment.HoldID)
	})
	if err != nil {
		s.logger.Error("CHECKOUT", fmt.Sprintf("Failed to release discount %s for hold %s: %v",
			payment.DiscountCode, payment.HoldID, err))
	}
}

// promote runs the confirmation transaction: hold PENDING -> CONFIRMED,
// held units become sold, the booking row is inserted, every ticket is
// minted and the commission entry is posted. All of it commits or none
// of it does.
func (s *Service) promote(ctx context.Context, holdID string, payment *models.PaymentRecord) (*models.Booking, error) {
	if existing, err := s.bookings.GetBookingByHoldID(ctx, holdID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	var booking models.Booking
	err := s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		confirmed, err := s.holds.ConfirmTx(ctx, tx, holdID)
		if err != nil {
			return err
		}
		tier, err := s.holds.Ledger().WithDB(tx).GetTier(ctx, confirmed.TierID)
		if err != nil {
			return err
		}

		now := time.Now()
		booking = models.Booking{
			BookingID:      uuid.NewString(),
			Reference:      utils.GenerateBookingReference(),
			HoldID:         confirmed.HoldID,
			BuyerID:        confirmed.BuyerID,
			EventID:        confirmed.EventID,
			TierID:         confirmed.TierID,
			OrganizerID:    tier.OrganizerID,
			Quantity:       confirmed.Quantity,
			AddOns:         payment.AddOns,
			DiscountCode:   payment.DiscountCode,
			DiscountAmount: payment.DiscountAmount,
			Subtotal:       payment.Subtotal,
			Total:          payment.Amount,
			Currency:       payment.Currency,
			PaymentRef:     payment.IntentRef,
			Status:         models.BookingConfirmed,
			ConfirmedAt:    now,
			CreatedAt:      now,
		}
		if err := s.bookings.WithDB(tx).CreateBooking(ctx, booking); err != nil {
			return err
		}
		if _, err := s.issuer.IssueTx(ctx, tx, booking, tier.Name); err != nil {
			return err
		}
		_, err = s.commission.PostCommissionTx(ctx, tx, booking)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.issuer.VerifyIssued(ctx, booking.BookingID, booking.Quantity); err != nil {
		if errors.Is(err, models.ErrPartialIssuance) {
			if ferr := s.bookings.FlagForReconciliation(ctx, booking.BookingID); ferr != nil {
				s.logger.Error("CHECKOUT", fmt.Sprintf("Failed to flag booking %s: %v", booking.BookingID, ferr))
			}
		}
		return nil, err
	}

	s.logger.LogBooking("confirmed", booking.BookingID, fmt.Sprintf("Booking %s confirmed for buyer %s, total %.2f %s",
		booking.Reference, booking.BuyerID, booking.Total, booking.Currency))

	s.producer.PublishBookingConfirmed(ctx, models.BookingConfirmedEvent{
		BookingID: booking.BookingID,
		Reference: booking.Reference,
		BuyerID:   booking.BuyerID,
		EventID:   booking.EventID,
		Quantity:  booking.Quantity,
		Total:     booking.Total,
		Timestamp: time.Now(),
	})

	return &booking, nil
}

// Reconcile applies a payment outcome reported by the gateway webhook.
// Duplicate deliveries lose the status transition and become no-ops. A
// success that arrives after the hold expired flags the payment for
// refund instead of confirming a dead hold.
func (s *Service) Reconcile(ctx context.Context, event models.PaymentEvent) error {
	payment, err := s.lookupPayment(ctx, event)
	if err != nil {
		return err
	}
	if payment == nil {
		s.logger.Warn("CHECKOUT", fmt.Sprintf("Webhook for unknown payment intent %s", event.IntentRef))
		return nil
	}

	switch event.Status {
	case models.PaymentSucceeded:
		won, err := s.payments.Transition(ctx, payment.PaymentID, models.PaymentPending, models.PaymentSucceeded)
		if err != nil {
			return err
		}
		if !won {
			// Already applied by the synchronous path or an earlier
			// delivery.
			return nil
		}
		_, err = s.promote(ctx, payment.HoldID, payment)
		if errors.Is(err, models.ErrHoldExpired) || errors.Is(err, models.ErrInvalidState) {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Payment %s succeeded after hold %s left PENDING, flagging for refund",
				payment.PaymentID, payment.HoldID))
			if _, terr := s.payments.Transition(ctx, payment.PaymentID, models.PaymentSucceeded, models.PaymentRefunded); terr != nil {
				return terr
			}
			return nil
		}
		return err

	case models.PaymentFailed:
		s.failPayment(ctx, payment)
		return nil

	default:
		s.logger.Debug("CHECKOUT", fmt.Sprintf("Ignoring webhook status %s for payment %s", event.Status, payment.PaymentID))
		return nil
	}
}

func (s *Service) lookupPayment(ctx context.Context, event models.PaymentEvent) (*models.PaymentRecord, error) {
	if event.IntentRef != "" {
		return s.payments.GetPaymentByIntentRef(ctx, event.IntentRef)
	}
	if event.HoldID != "" {
		return s.payments.GetPaymentByHoldID(ctx, event.HoldID)
	}
	return nil, fmt.Errorf("payment event carries neither intent ref nor hold id")
}

// Status reports where a checkout stands, for buyers polling after a
// pending gateway outcome.
func (s *Service) Status(ctx context.Context, holdID string) (*models.CheckoutResponse, error) {
	if booking, err := s.bookings.GetBookingByHoldID(ctx, holdID); err != nil {
		return nil, err
	} else if booking != nil {
		return bookingResponse(booking), nil
	}
	payment, err := s.payments.GetPaymentByHoldID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("no checkout found for hold %s", holdID)
	}
	return &models.CheckoutResponse{
		Total:      payment.Amount,
		Discount:   payment.DiscountAmount,
		Status:     string(payment.Status),
		PaymentRef: payment.IntentRef,
	}, nil
}

func bookingResponse(b *models.Booking) *models.CheckoutResponse {
	return &models.CheckoutResponse{
		BookingID:  b.BookingID,
		Reference:  b.Reference,
		Total:      b.Total,
		Discount:   b.DiscountAmount,
		Status:     string(b.Status),
		PaymentRef: b.PaymentRef,
	}
}
