package hold

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-booking/internal/hold/db"
	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Service owns the hold lifecycle: PENDING on creation, then exactly one
// of CONFIRMED, EXPIRED or CANCELLED. Every transition is guarded by a
// conditional update so concurrent sweepers, cancellations and payment
// confirmations race safely: the first writer wins, everyone else
// observes a non-PENDING hold and leaves inventory alone.
type Service struct {
	bunDB  *bun.DB
	holds  *db.DB
	ledger *inventory.Ledger
	ttl    time.Duration
	logger *logger.Logger
}

func NewService(bunDB *bun.DB, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		bunDB:  bunDB,
		holds:  &db.DB{Bun: bunDB},
		ledger: inventory.NewLedger(bunDB),
		ttl:    ttl,
		logger: log,
	}
}

// Ledger exposes the tier counters for read paths and for callers that
// need to seed tiers.
func (s *Service) Ledger() *inventory.Ledger {
	return s.ledger
}

// Reserve checks per-order bounds, then atomically moves capacity from
// available to held and creates the PENDING hold in one transaction.
func (s *Service) Reserve(ctx context.Context, buyerID string, req models.HoldRequest) (*models.Hold, error) {
	tier, err := s.ledger.GetTier(ctx, req.TierID)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", req.Quantity)
	}
	if tier.MinPerOrder > 0 && req.Quantity < tier.MinPerOrder {
		return nil, fmt.Errorf("tier %s requires at least %d units per order", tier.TierID, tier.MinPerOrder)
	}
	if tier.MaxPerOrder > 0 && req.Quantity > tier.MaxPerOrder {
		return nil, fmt.Errorf("tier %s allows at most %d units per order", tier.TierID, tier.MaxPerOrder)
	}

	now := time.Now()
	hold := models.Hold{
		HoldID:    uuid.NewString(),
		TierID:    tier.TierID,
		EventID:   tier.EventID,
		BuyerID:   buyerID,
		Quantity:  req.Quantity,
		Status:    models.HoldPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	err = s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.ledger.WithDB(tx).Reserve(ctx, tier.TierID, req.Quantity); err != nil {
			return err
		}
		return s.holds.WithDB(tx).CreateHold(ctx, hold)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("HOLD", fmt.Sprintf("Reserved %d x %s for buyer %s (hold %s, expires %s)",
		req.Quantity, tier.TierID, buyerID, hold.HoldID, hold.ExpiresAt.Format(time.RFC3339)))
	return &hold, nil
}

// Get returns the hold or nil when it does not exist.
func (s *Service) Get(ctx context.Context, holdID string) (*models.Hold, error) {
	return s.holds.GetHoldByID(ctx, holdID)
}

// ValidatePending verifies the hold is PENDING and still inside its
// window. Checkout calls this before pricing.
func (s *Service) ValidatePending(ctx context.Context, holdID string) (*models.Hold, error) {
	hold, err := s.holds.GetHoldByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, fmt.Errorf("hold %s not found", holdID)
	}
	if hold.Status != models.HoldPending || hold.ExpiredAt(time.Now()) {
		return nil, models.ErrHoldExpired
	}
	return hold, nil
}

// Confirm flips PENDING -> CONFIRMED and converts the held units to
// sold. Only the checkout orchestrator calls it, after payment success.
func (s *Service) Confirm(ctx context.Context, holdID string) (*models.Hold, error) {
	var confirmed *models.Hold
	err := s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hold, err := s.ConfirmTx(ctx, tx, holdID)
		if err != nil {
			return err
		}
		confirmed = hold
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("HOLD", fmt.Sprintf("Hold %s confirmed", holdID))
	return confirmed, nil
}

// ConfirmTx is the confirmation body, exposed so the checkout
// orchestrator can commit booking creation and ticket issuance in the
// same transaction as the hold transition.
func (s *Service) ConfirmTx(ctx context.Context, tx bun.Tx, holdID string) (*models.Hold, error) {
	holds := s.holds.WithDB(tx)
	won, err := holds.TransitionBeforeExpiry(ctx, holdID, models.HoldPending, models.HoldConfirmed, time.Now())
	if err != nil {
		return nil, err
	}
	hold, err := holds.GetHoldByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, fmt.Errorf("hold %s not found", holdID)
	}
	if !won {
		if hold.Status == models.HoldPending {
			// Still pending but past the deadline: the sweep has not
			// caught it yet, the buyer is simply too late.
			return nil, models.ErrHoldExpired
		}
		return nil, models.ErrInvalidState
	}
	if err := s.ledger.WithDB(tx).Commit(ctx, hold.TierID, hold.Quantity); err != nil {
		return nil, err
	}
	hold.Status = models.HoldConfirmed
	return hold, nil
}

// Cancel is explicit buyer abandonment: PENDING -> CANCELLED plus
// inventory release. Cancelling a hold that already reached a terminal
// state fails ErrInvalidState; the release itself can never run twice
// because only the transition winner performs it.
func (s *Service) Cancel(ctx context.Context, holdID, buyerID string) error {
	return s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		holds := s.holds.WithDB(tx)
		hold, err := holds.GetHoldByID(ctx, holdID)
		if err != nil {
			return err
		}
		if hold == nil {
			return fmt.Errorf("hold %s not found", holdID)
		}
		if buyerID != "" && hold.BuyerID != buyerID {
			return fmt.Errorf("hold %s does not belong to buyer %s", holdID, buyerID)
		}
		won, err := holds.Transition(ctx, holdID, models.HoldPending, models.HoldCancelled)
		if err != nil {
			return err
		}
		if !won {
			return models.ErrInvalidState
		}
		return s.ledger.WithDB(tx).Release(ctx, hold.TierID, hold.Quantity)
	})
}

// ExpireDue is the sweep body: it expires every overdue PENDING hold and
// releases its capacity. Safe to run concurrently from multiple workers;
// each overdue hold is expired by exactly one of them.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.holds.ListDueForExpiry(ctx, now, 200)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, hold := range due {
		err := s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			won, err := s.holds.WithDB(tx).Transition(ctx, hold.HoldID, models.HoldPending, models.HoldExpired)
			if err != nil {
				return err
			}
			if !won {
				// Confirmed, cancelled or expired by someone else since
				// we listed it.
				return nil
			}
			expired++
			return s.ledger.WithDB(tx).Release(ctx, hold.TierID, hold.Quantity)
		})
		if err != nil {
			s.logger.Error("SWEEPER", fmt.Sprintf("Failed to expire hold %s: %v", hold.HoldID, err))
		}
	}
	return expired, nil
}
