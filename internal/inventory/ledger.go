package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Ledger owns the per-tier capacity counters. Every mutation is a single
// conditional UPDATE so concurrent callers on the same tier are safe
// without any process-level lock, and callers on different tiers never
// serialize against each other.
type Ledger struct {
	db bun.IDB
}

func NewLedger(db bun.IDB) *Ledger {
	return &Ledger{db: db}
}

// WithDB rebinds the ledger to another executor, typically a bun.Tx, so
// counter updates can join a caller's transaction.
func (l *Ledger) WithDB(db bun.IDB) *Ledger {
	return &Ledger{db: db}
}

// Reserve moves quantity units from available to held. Fails with
// ErrSoldOut when fewer than quantity units are available; the check and
// decrement are one indivisible statement.
func (l *Ledger) Reserve(ctx context.Context, tierID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", quantity)
	}
	res, err := l.db.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("available = available - ?", quantity).
		Set("held = held + ?", quantity).
		Where("tier_id = ?", tierID).
		Where("available >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reserve tier %s: %w", tierID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve tier %s: %w", tierID, err)
	}
	if affected == 0 {
		return models.ErrSoldOut
	}
	return nil
}

// Commit converts held units into sold. Available is untouched: it was
// already decremented at reserve time.
func (l *Ledger) Commit(ctx context.Context, tierID string, quantity int) error {
	res, err := l.db.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("held = held - ?", quantity).
		Set("sold = sold + ?", quantity).
		Where("tier_id = ?", tierID).
		Where("held >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("commit tier %s: %w", tierID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit tier %s: %w", tierID, err)
	}
	if affected == 0 {
		// Held dropping below a committed hold's quantity means reserve
		// and release got out of step somewhere. Never auto-correct.
		return models.ErrLedgerInconsistency
	}
	return nil
}

// Release credits held units back to available. Callers guard it behind
// the hold's terminal-state transition, which is what makes release
// idempotent: the second release of the same hold never reaches here.
func (l *Ledger) Release(ctx context.Context, tierID string, quantity int) error {
	res, err := l.db.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("available = available + ?", quantity).
		Set("held = held - ?", quantity).
		Where("tier_id = ?", tierID).
		Where("held >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release tier %s: %w", tierID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release tier %s: %w", tierID, err)
	}
	if affected == 0 {
		return models.ErrLedgerInconsistency
	}
	return nil
}

// Restock returns voided units to sale after a refund: sold decreases,
// available increases. Guarded by the booking's terminal transition the
// same way Release is guarded by the hold's.
func (l *Ledger) Restock(ctx context.Context, tierID string, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	res, err := l.db.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("sold = sold - ?", quantity).
		Set("available = available + ?", quantity).
		Where("tier_id = ?", tierID).
		Where("sold >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("restock tier %s: %w", tierID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("restock tier %s: %w", tierID, err)
	}
	if affected == 0 {
		return models.ErrLedgerInconsistency
	}
	return nil
}

func (l *Ledger) GetTier(ctx context.Context, tierID string) (*models.TicketTier, error) {
	var tier models.TicketTier
	err := l.db.NewSelect().
		Model(&tier).
		Where("tier_id = ?", tierID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tier %s not found", tierID)
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

func (l *Ledger) GetTiersByEvent(ctx context.Context, eventID string) ([]models.TicketTier, error) {
	var tiers []models.TicketTier
	err := l.db.NewSelect().
		Model(&tiers).
		Where("event_id = ?", eventID).
		Order("name ASC").
		Scan(ctx)
	return tiers, err
}

// CreateTier seeds a tier from the metadata collaborator's capacity
// configuration. Available starts equal to capacity.
func (l *Ledger) CreateTier(ctx context.Context, tier models.TicketTier) error {
	tier.Available = tier.Capacity
	tier.Held = 0
	tier.Sold = 0
	_, err := l.db.NewInsert().Model(&tier).Exec(ctx)
	return err
}
