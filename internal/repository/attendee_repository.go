package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/adas-events/internal/model"
)

// AttendeeRepo stores issued tickets.  The unique keys on ticket_id and
// transaction_reference are what the ticket writer relies on for re-rolls
// and idempotent verification.
type AttendeeRepo struct {
    db *sql.DB
}

func NewAttendeeRepo(db *sql.DB) *AttendeeRepo { return &AttendeeRepo{db: db} }

const attendeeColumns = `id, event_id, tier_id, user_id, full_name, email, phone, quantity, ticket_id,
    transaction_reference, amount_minor, purchased_at, validated, validated_at`

func scanAttendee(s rowScanner) (model.Attendee, error) {
    var (
        a           model.Attendee
        ref         sql.NullString
        validatedAt sql.NullTime
    )
    err := s.Scan(&a.ID, &a.EventID, &a.TierID, &a.UserID, &a.FullName, &a.Email, &a.Phone, &a.Quantity, &a.TicketID,
        &ref, &a.AmountMinor, &a.PurchasedAt, &a.Validated, &validatedAt)
    if err != nil {
        return model.Attendee{}, err
    }
    if ref.Valid {
        a.TransactionReference = &ref.String
    }
    if validatedAt.Valid {
        a.ValidatedAt = &validatedAt.Time
    }
    return a, nil
}

// InsertAttendee writes one ticket.  A unique-key clash comes back as
// model.ErrDuplicateTicketID or model.ErrDuplicateReference.
func (r *AttendeeRepo) InsertAttendee(ctx context.Context, a model.Attendee) error {
    const q = `INSERT INTO attendees (id, event_id, tier_id, user_id, full_name, email, phone, quantity, ticket_id,
        transaction_reference, amount_minor, purchased_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var ref sql.NullString
    if a.TransactionReference != nil {
        ref = sql.NullString{String: *a.TransactionReference, Valid: true}
    }
    _, err := conn(ctx, r.db).ExecContext(ctx, q,
        a.ID, a.EventID, a.TierID, a.UserID, a.FullName, a.Email, a.Phone, a.Quantity, a.TicketID,
        ref, a.AmountMinor, a.PurchasedAt.UTC())
    return duplicateKey(err)
}

// GetAttendeeByReference returns nil, nil when no ticket was issued for
// ref yet.
func (r *AttendeeRepo) GetAttendeeByReference(ctx context.Context, ref string) (*model.Attendee, error) {
    q := `SELECT ` + attendeeColumns + ` FROM attendees WHERE transaction_reference = ?`
    a, err := scanAttendee(conn(ctx, r.db).QueryRowContext(ctx, q, ref))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &a, nil
}

// GetFreeAttendee returns userID's unpaid ticket for the tier, or nil, nil.
// Called under the tier row lock, so two registrations by one user cannot
// both miss.
func (r *AttendeeRepo) GetFreeAttendee(ctx context.Context, eventID, tierID, userID string) (*model.Attendee, error) {
    q := `SELECT ` + attendeeColumns + ` FROM attendees
        WHERE event_id = ? AND tier_id = ? AND user_id = ? AND transaction_reference IS NULL
        ORDER BY purchased_at ASC LIMIT 1`
    a, err := scanAttendee(conn(ctx, r.db).QueryRowContext(ctx, q, eventID, tierID, userID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &a, nil
}

func (r *AttendeeRepo) GetAttendeeByTicketID(ctx context.Context, ticketID string) (model.Attendee, error) {
    q := `SELECT ` + attendeeColumns + ` FROM attendees WHERE ticket_id = ?`
    a, err := scanAttendee(conn(ctx, r.db).QueryRowContext(ctx, q, ticketID))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Attendee{}, model.ErrTicketNotFound
    }
    return a, err
}

// SumPurchased is how many tickets userID already holds in the tier.
func (r *AttendeeRepo) SumPurchased(ctx context.Context, eventID, tierID, userID string) (int, error) {
    const q = `SELECT COALESCE(SUM(quantity), 0) FROM attendees WHERE event_id = ? AND tier_id = ? AND user_id = ?`
    var n int
    err := conn(ctx, r.db).QueryRowContext(ctx, q, eventID, tierID, userID).Scan(&n)
    return n, err
}

// IsAttendee reports whether userID holds any ticket for the event.
func (r *AttendeeRepo) IsAttendee(ctx context.Context, eventID, userID string) (bool, error) {
    var one int
    err := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT 1 FROM attendees WHERE event_id = ? AND user_id = ? LIMIT 1`, eventID, userID).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    return err == nil, err
}

func (r *AttendeeRepo) ListAttendees(ctx context.Context, eventID string) ([]model.Attendee, error) {
    q := `SELECT ` + attendeeColumns + ` FROM attendees WHERE event_id = ? ORDER BY purchased_at ASC`
    return r.list(ctx, q, eventID)
}

// ListAttendeesByUser returns the buyer's own tickets, newest first.
func (r *AttendeeRepo) ListAttendeesByUser(ctx context.Context, userID string) ([]model.Attendee, error) {
    q := `SELECT ` + attendeeColumns + ` FROM attendees WHERE user_id = ? ORDER BY purchased_at DESC`
    return r.list(ctx, q, userID)
}

func (r *AttendeeRepo) list(ctx context.Context, q string, arg any) ([]model.Attendee, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, arg)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := []model.Attendee{}
    for rows.Next() {
        a, err := scanAttendee(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, a)
    }
    return out, rows.Err()
}

// ValidateTicket flips the validated flag once.  A second call returns
// model.ErrAlreadyValidated.
func (r *AttendeeRepo) ValidateTicket(ctx context.Context, ticketID string, at time.Time) (model.Attendee, error) {
    res, err := conn(ctx, r.db).ExecContext(ctx,
        `UPDATE attendees SET validated = 1, validated_at = ? WHERE ticket_id = ? AND validated = 0`, at.UTC(), ticketID)
    if err != nil {
        return model.Attendee{}, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return model.Attendee{}, err
    }
    a, err := r.GetAttendeeByTicketID(ctx, ticketID)
    if err != nil {
        return model.Attendee{}, err
    }
    if n == 0 {
        return a, model.ErrAlreadyValidated
    }
    return a, nil
}
