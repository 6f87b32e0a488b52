package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/adas-events/internal/model"
)

// PaymentRepo holds pending checkouts, organizer gateway credentials and
// reconciliation cases.
type PaymentRepo struct {
    db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `reference, event_id, creator_id, tier_id, buyer_id, buyer_email, full_name, phone, quantity,
    amount_minor, currency, status, created_at, updated_at`

func (r *PaymentRepo) CreatePayment(ctx context.Context, p model.Payment) error {
    q := `INSERT INTO payments (` + paymentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err := conn(ctx, r.db).ExecContext(ctx, q,
        p.Reference, p.EventID, p.CreatorID, p.TierID, p.BuyerID, p.BuyerEmail, p.FullName, p.Phone, p.Quantity,
        p.AmountMinor, p.Currency, string(p.Status), p.CreatedAt.UTC(), p.UpdatedAt.UTC())
    var me *mysql.MySQLError
    if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
        return fmt.Errorf("payment %s: %w", p.Reference, ErrConflict)
    }
    return err
}

func (r *PaymentRepo) GetPayment(ctx context.Context, ref string) (model.Payment, error) {
    var (
        p      model.Payment
        status string
    )
    q := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = ?`
    err := conn(ctx, r.db).QueryRowContext(ctx, q, ref).Scan(
        &p.Reference, &p.EventID, &p.CreatorID, &p.TierID, &p.BuyerID, &p.BuyerEmail, &p.FullName, &p.Phone, &p.Quantity,
        &p.AmountMinor, &p.Currency, &status, &p.CreatedAt, &p.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return model.Payment{}, model.ErrPaymentNotFound
    }
    if err != nil {
        return model.Payment{}, err
    }
    p.Status = model.PaymentStatus(status)
    return p, nil
}

func (r *PaymentRepo) UpdatePaymentStatus(ctx context.Context, ref string, status model.PaymentStatus) error {
    res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE payments SET status = ? WHERE reference = ?`, string(status), ref)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        // Same status again is not an error; a missing row is.
        if _, err := r.GetPayment(ctx, ref); err != nil {
            return err
        }
    }
    return nil
}

// CountPendingPayments counts the event's checkouts still awaiting an
// outcome that were opened at or after since.
func (r *PaymentRepo) CountPendingPayments(ctx context.Context, eventID string, since time.Time) (int, error) {
    const q = `SELECT COUNT(*) FROM payments WHERE event_id = ? AND status = ? AND created_at >= ?`
    var n int
    err := conn(ctx, r.db).QueryRowContext(ctx, q, eventID, string(model.PaymentPending), since.UTC()).Scan(&n)
    return n, err
}

// GetPaymentSetup returns nil, nil when the organizer has not saved keys.
func (r *PaymentRepo) GetPaymentSetup(ctx context.Context, creatorID string) (*model.PaymentSetup, error) {
    var s model.PaymentSetup
    err := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT creator_id, public_key, secret_key_sealed, created_at, updated_at FROM payment_setups WHERE creator_id = ?`,
        creatorID).Scan(&s.CreatorID, &s.PublicKey, &s.SecretKeySealed, &s.CreatedAt, &s.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &s, nil
}

// SavePaymentSetup inserts or replaces the organizer's keys.
func (r *PaymentRepo) SavePaymentSetup(ctx context.Context, s model.PaymentSetup) error {
    const q = `INSERT INTO payment_setups (creator_id, public_key, secret_key_sealed, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE public_key = VALUES(public_key), secret_key_sealed = VALUES(secret_key_sealed), updated_at = VALUES(updated_at)`
    _, err := conn(ctx, r.db).ExecContext(ctx, q, s.CreatorID, s.PublicKey, s.SecretKeySealed, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
    return err
}

func (r *PaymentRepo) CreateReconciliationCase(ctx context.Context, c model.ReconciliationCase) error {
    const q = `INSERT INTO reconciliation_cases (id, reference, event_id, tier_id, buyer_id, quantity, amount_minor, reason, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err := conn(ctx, r.db).ExecContext(ctx, q,
        c.ID, c.Reference, c.EventID, c.TierID, c.BuyerID, c.Quantity, c.AmountMinor, c.Reason, c.Status, c.CreatedAt.UTC())
    return err
}

// GetReconciliationCaseByReference returns the oldest case for ref, or
// nil, nil when none exists.
func (r *PaymentRepo) GetReconciliationCaseByReference(ctx context.Context, ref string) (*model.ReconciliationCase, error) {
    var c model.ReconciliationCase
    err := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, reference, event_id, tier_id, buyer_id, quantity, amount_minor, reason, status, created_at
         FROM reconciliation_cases WHERE reference = ? ORDER BY created_at ASC LIMIT 1`, ref).Scan(
        &c.ID, &c.Reference, &c.EventID, &c.TierID, &c.BuyerID, &c.Quantity, &c.AmountMinor, &c.Reason, &c.Status, &c.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &c, nil
}
