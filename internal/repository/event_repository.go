package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/adas-events/internal/model"
)

// EventRepo persists events together with their ticket tiers.  Tier rows
// are written in the same transaction as their event so an event is never
// visible without its tiers.
type EventRepo struct {
    db *sql.DB
    tx *TxRunner
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB, tx *TxRunner) *EventRepo { return &EventRepo{db: db, tx: tx} }

const eventColumns = `id, creator_id, title, description, host_name, image_url, language, event_type,
    starts_at, ends_at, venue_address, venue_lat, venue_lng, platform, platform_link,
    discussion_restricted, chat_locked, anonymous_mode, status, created_at, updated_at`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanEvent(s rowScanner) (model.Event, error) {
    var (
        e        model.Event
        lat, lng sql.NullFloat64
    )
    err := s.Scan(
        &e.ID, &e.CreatorID, &e.Title, &e.Description, &e.HostName, &e.ImageURL, &e.Language, &e.EventType,
        &e.StartsAt, &e.EndsAt, &e.Venue.Address, &lat, &lng, &e.Venue.Platform, &e.Venue.PlatformLink,
        &e.DiscussionRestricted, &e.ChatLocked, &e.AnonymousMode, &e.Status, &e.CreatedAt, &e.UpdatedAt,
    )
    if err != nil {
        return model.Event{}, err
    }
    if lat.Valid {
        e.Venue.Latitude = &lat.Float64
    }
    if lng.Valid {
        e.Venue.Longitude = &lng.Float64
    }
    return e, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
    if f == nil {
        return sql.NullFloat64{}
    }
    return sql.NullFloat64{Float64: *f, Valid: true}
}

// CreateEvent inserts the event and its tiers.  IDs and timestamps must be
// set by the caller.
func (r *EventRepo) CreateEvent(ctx context.Context, e model.Event) error {
    return r.tx.WithTx(ctx, func(ctx context.Context) error {
        const q = `INSERT INTO events (id, creator_id, title, description, host_name, image_url, language, event_type,
            starts_at, ends_at, venue_address, venue_lat, venue_lng, platform, platform_link,
            discussion_restricted, chat_locked, anonymous_mode, status, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
        if _, err := conn(ctx, r.db).ExecContext(ctx, q,
            e.ID, e.CreatorID, e.Title, e.Description, e.HostName, e.ImageURL, e.Language, e.EventType,
            e.StartsAt.UTC(), e.EndsAt.UTC(), e.Venue.Address, nullFloat(e.Venue.Latitude), nullFloat(e.Venue.Longitude),
            e.Venue.Platform, e.Venue.PlatformLink, e.DiscussionRestricted, e.ChatLocked, e.AnonymousMode,
            e.Status, e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
        ); err != nil {
            return fmt.Errorf("insert event: %w", err)
        }
        for _, t := range e.Tiers {
            if err := r.insertTier(ctx, t); err != nil {
                return err
            }
        }
        return nil
    })
}

func (r *EventRepo) insertTier(ctx context.Context, t model.TicketTier) error {
    const q = `INSERT INTO ticket_tiers (id, event_id, name, price_minor, quantity, remaining, purchase_limit, position, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err := conn(ctx, r.db).ExecContext(ctx, q,
        t.ID, t.EventID, t.Name, t.PriceMinor, nullInt(t.Quantity), nullInt(t.Remaining), nullInt(t.PurchaseLimit),
        t.Position, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
    if err != nil {
        return fmt.Errorf("insert tier: %w", err)
    }
    return nil
}

// GetEvent loads the event and its tiers in position order.
func (r *EventRepo) GetEvent(ctx context.Context, id string) (model.Event, error) {
    q := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
    e, err := scanEvent(conn(ctx, r.db).QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Event{}, model.ErrEventNotFound
    }
    if err != nil {
        return model.Event{}, err
    }
    tiers, err := r.tiersFor(ctx, []string{id})
    if err != nil {
        return model.Event{}, err
    }
    e.Tiers = tiers[id]
    return e, nil
}

// ListEvents returns active events ordered by start time, each with its
// tiers.  A CreatorID filter also includes the creator's cancelled events.
func (r *EventRepo) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
    if f.Limit <= 0 || f.Limit > 100 {
        f.Limit = 50
    }
    if f.Offset < 0 {
        f.Offset = 0
    }
    var (
        where = `status = ?`
        args  = []any{model.EventStatusActive}
    )
    if f.CreatorID != "" {
        where = `creator_id = ?`
        args = []any{f.CreatorID}
    }
    q := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY starts_at ASC, id ASC LIMIT ? OFFSET ?`
    args = append(args, f.Limit, f.Offset)

    rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var (
        out []model.Event
        ids []string
    )
    for rows.Next() {
        e, err := scanEvent(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, e)
        ids = append(ids, e.ID)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(ids) == 0 {
        return []model.Event{}, nil
    }
    tiers, err := r.tiersFor(ctx, ids)
    if err != nil {
        return nil, err
    }
    for i := range out {
        out[i].Tiers = tiers[out[i].ID]
    }
    return out, nil
}

func (r *EventRepo) tiersFor(ctx context.Context, eventIDs []string) (map[string][]model.TicketTier, error) {
    ph := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
    args := make([]any, len(eventIDs))
    for i, id := range eventIDs {
        args[i] = id
    }
    q := `SELECT ` + tierColumns + ` FROM ticket_tiers WHERE event_id IN (` + ph + `) ORDER BY event_id, position`
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make(map[string][]model.TicketTier, len(eventIDs))
    for rows.Next() {
        t, err := scanTier(rows)
        if err != nil {
            return nil, err
        }
        out[t.EventID] = append(out[t.EventID], t)
    }
    return out, rows.Err()
}

// UpdateEvent writes the editable event fields.  Tiers are edited through
// TierRepo.
func (r *EventRepo) UpdateEvent(ctx context.Context, e model.Event) error {
    const q = `UPDATE events SET title = ?, description = ?, host_name = ?, image_url = ?, language = ?, event_type = ?,
        starts_at = ?, ends_at = ?, venue_address = ?, venue_lat = ?, venue_lng = ?, platform = ?, platform_link = ?,
        discussion_restricted = ?, chat_locked = ?, anonymous_mode = ?, status = ?
        WHERE id = ?`
    res, err := conn(ctx, r.db).ExecContext(ctx, q,
        e.Title, e.Description, e.HostName, e.ImageURL, e.Language, e.EventType,
        e.StartsAt.UTC(), e.EndsAt.UTC(), e.Venue.Address, nullFloat(e.Venue.Latitude), nullFloat(e.Venue.Longitude),
        e.Venue.Platform, e.Venue.PlatformLink, e.DiscussionRestricted, e.ChatLocked, e.AnonymousMode, e.Status,
        e.ID)
    if err != nil {
        return err
    }
    return r.mustExist(ctx, res, e.ID)
}

// UpdateEventFlags changes only the flags that are set.
func (r *EventRepo) UpdateEventFlags(ctx context.Context, id string, f model.EventFlags) error {
    var (
        sets []string
        args []any
    )
    if f.DiscussionRestricted != nil {
        sets = append(sets, "discussion_restricted = ?")
        args = append(args, *f.DiscussionRestricted)
    }
    if f.ChatLocked != nil {
        sets = append(sets, "chat_locked = ?")
        args = append(args, *f.ChatLocked)
    }
    if f.AnonymousMode != nil {
        sets = append(sets, "anonymous_mode = ?")
        args = append(args, *f.AnonymousMode)
    }
    if len(sets) == 0 {
        return nil
    }
    args = append(args, id)
    res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE events SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
    if err != nil {
        return err
    }
    return r.mustExist(ctx, res, id)
}

// mustExist tells "no such event" apart from "nothing changed", which
// MySQL reports the same way in RowsAffected.
func (r *EventRepo) mustExist(ctx context.Context, res sql.Result, id string) error {
    if n, err := res.RowsAffected(); err == nil && n > 0 {
        return nil
    }
    var one int
    err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return model.ErrEventNotFound
    }
    return err
}

// DeleteEvent removes the event.  Tiers, attendees and discussion rows go
// with it through ON DELETE CASCADE.  Payments stay so a late payment can
// still be verified and escalated.
func (r *EventRepo) DeleteEvent(ctx context.Context, id string) error {
    res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return model.ErrEventNotFound
    }
    return nil
}

// DeleteEventsEndedBefore removes every event whose end time is older
// than cutoff and reports how many were deleted.
func (r *EventRepo) DeleteEventsEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
    res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM events WHERE ends_at < ?`, cutoff.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// CreatorDashboard sums tickets and revenue per event for one organizer,
// newest events first.
func (r *EventRepo) CreatorDashboard(ctx context.Context, creatorID string) ([]model.EventStats, error) {
    const q = `SELECT e.id, e.title, e.starts_at,
            COALESCE(SUM(a.quantity), 0), COALESCE(SUM(a.amount_minor), 0)
        FROM events e
        LEFT JOIN attendees a ON a.event_id = e.id
        WHERE e.creator_id = ?
        GROUP BY e.id, e.title, e.starts_at
        ORDER BY e.starts_at DESC`
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, creatorID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := []model.EventStats{}
    for rows.Next() {
        var s model.EventStats
        if err := rows.Scan(&s.EventID, &s.Title, &s.StartsAt, &s.TicketsSold, &s.RevenueMinor); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}
