package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/adas-events/internal/model"
)

// TierRepo guards the inventory counters.  Remaining is only ever lowered
// through DecrementRemaining, whose WHERE clause refuses to go below zero.
type TierRepo struct {
    db *sql.DB
}

func NewTierRepo(db *sql.DB) *TierRepo { return &TierRepo{db: db} }

const tierColumns = `id, event_id, name, price_minor, quantity, remaining, purchase_limit, position, created_at, updated_at`

func scanTier(s rowScanner) (model.TicketTier, error) {
    var (
        t                   model.TicketTier
        qty, remaining, lim sql.NullInt64
    )
    if err := s.Scan(&t.ID, &t.EventID, &t.Name, &t.PriceMinor, &qty, &remaining, &lim, &t.Position, &t.CreatedAt, &t.UpdatedAt); err != nil {
        return model.TicketTier{}, err
    }
    t.Quantity = intPtr(qty)
    t.Remaining = intPtr(remaining)
    t.PurchaseLimit = intPtr(lim)
    return t, nil
}

func intPtr(n sql.NullInt64) *int {
    if !n.Valid {
        return nil
    }
    v := int(n.Int64)
    return &v
}

func nullInt(p *int) sql.NullInt64 {
    if p == nil {
        return sql.NullInt64{}
    }
    return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// GetTierForUpdate reads the tier with SELECT ... FOR UPDATE.  Outside a
// transaction the lock is released immediately, so callers run it inside
// WithTx.
func (r *TierRepo) GetTierForUpdate(ctx context.Context, eventID, tierID string) (model.TicketTier, error) {
    q := `SELECT ` + tierColumns + ` FROM ticket_tiers WHERE id = ? AND event_id = ? FOR UPDATE`
    t, err := scanTier(conn(ctx, r.db).QueryRowContext(ctx, q, tierID, eventID))
    if errors.Is(err, sql.ErrNoRows) {
        return model.TicketTier{}, model.ErrTierNotFound
    }
    return t, err
}

// DecrementRemaining lowers remaining by qty when at least qty is left.
// Unlimited tiers (NULL remaining) never match.
func (r *TierRepo) DecrementRemaining(ctx context.Context, tierID string, qty int) (bool, error) {
    const q = `UPDATE ticket_tiers SET remaining = remaining - ? WHERE id = ? AND remaining IS NOT NULL AND remaining >= ?`
    res, err := conn(ctx, r.db).ExecContext(ctx, q, qty, tierID, qty)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// UpdateTier applies an organizer edit.  When the capacity changes,
// remaining is recomputed as quantity minus tickets sold, which may move a
// sold out tier back to available.  A capacity below what was sold is
// rejected with model.ErrQuantityBelowSold.
func (r *TierRepo) UpdateTier(ctx context.Context, t model.TicketTier) (model.TicketTier, error) {
    var out model.TicketTier
    err := NewTxRunner(r.db).WithTx(ctx, func(ctx context.Context) error {
        cur, err := r.GetTierForUpdate(ctx, t.EventID, t.ID)
        if err != nil {
            return err
        }
        var sold int
        err = conn(ctx, r.db).QueryRowContext(ctx,
            `SELECT COALESCE(SUM(quantity), 0) FROM attendees WHERE tier_id = ?`, t.ID).Scan(&sold)
        if err != nil {
            return fmt.Errorf("count sold: %w", err)
        }
        var remaining *int
        if t.Quantity != nil {
            if *t.Quantity < sold {
                return model.ErrQuantityBelowSold
            }
            left := *t.Quantity - sold
            remaining = &left
        }
        const q = `UPDATE ticket_tiers SET name = ?, price_minor = ?, quantity = ?, remaining = ?, purchase_limit = ? WHERE id = ?`
        if _, err := conn(ctx, r.db).ExecContext(ctx, q,
            t.Name, t.PriceMinor, nullInt(t.Quantity), nullInt(remaining), nullInt(t.PurchaseLimit), t.ID); err != nil {
            return err
        }
        cur.Name, cur.PriceMinor = t.Name, t.PriceMinor
        cur.Quantity, cur.Remaining, cur.PurchaseLimit = t.Quantity, remaining, t.PurchaseLimit
        out = cur
        return nil
    })
    return out, err
}
