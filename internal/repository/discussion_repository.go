package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"

    "github.com/iliyamo/adas-events/internal/model"
)

// DiscussionRepo stores event messages and polls.  Poll tallies live on
// poll_options.vote_count and are kept in step with poll_votes by SetVote,
// which must run in the transaction that locked the poll.
type DiscussionRepo struct {
    db *sql.DB
}

func NewDiscussionRepo(db *sql.DB) *DiscussionRepo { return &DiscussionRepo{db: db} }

func (r *DiscussionRepo) InsertMessage(ctx context.Context, m model.Message) error {
    const q = `INSERT INTO discussion_messages (id, event_id, user_id, username, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`
    _, err := conn(ctx, r.db).ExecContext(ctx, q, m.ID, m.EventID, m.UserID, m.Username, m.Body, m.CreatedAt.UTC())
    return err
}

// ListMessages returns the latest limit messages, oldest first.
func (r *DiscussionRepo) ListMessages(ctx context.Context, eventID string, limit int) ([]model.Message, error) {
    const q = `SELECT id, event_id, user_id, username, body, created_at FROM (
            SELECT id, event_id, user_id, username, body, created_at FROM discussion_messages
            WHERE event_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
        ) latest ORDER BY created_at ASC, id ASC`
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, eventID, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := []model.Message{}
    for rows.Next() {
        var m model.Message
        if err := rows.Scan(&m.ID, &m.EventID, &m.UserID, &m.Username, &m.Body, &m.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, m)
    }
    return out, rows.Err()
}

// InsertPoll writes the poll and its options in order.
func (r *DiscussionRepo) InsertPoll(ctx context.Context, p model.Poll) error {
    return NewTxRunner(r.db).WithTx(ctx, func(ctx context.Context) error {
        if _, err := conn(ctx, r.db).ExecContext(ctx,
            `INSERT INTO polls (id, event_id, creator_id, question, ended, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
            p.ID, p.EventID, p.CreatorID, p.Question, p.Ended, p.CreatedAt.UTC()); err != nil {
            return fmt.Errorf("insert poll: %w", err)
        }
        for i, o := range p.Options {
            if _, err := conn(ctx, r.db).ExecContext(ctx,
                `INSERT INTO poll_options (poll_id, position, label, vote_count) VALUES (?, ?, ?, ?)`,
                p.ID, i, o.Label, o.Count); err != nil {
                return fmt.Errorf("insert poll option: %w", err)
            }
        }
        return nil
    })
}

// ListPolls returns the event's polls, oldest first, with tallies and
// voters.
func (r *DiscussionRepo) ListPolls(ctx context.Context, eventID string) ([]model.Poll, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT id, event_id, creator_id, question, ended, created_at FROM polls WHERE event_id = ? ORDER BY created_at ASC, id ASC`,
        eventID)
    if err != nil {
        return nil, err
    }
    var (
        polls []model.Poll
        ids   []string
    )
    for rows.Next() {
        p, err := scanPoll(rows)
        if err != nil {
            rows.Close()
            return nil, err
        }
        polls = append(polls, p)
        ids = append(ids, p.ID)
    }
    rows.Close()
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(polls) == 0 {
        return []model.Poll{}, nil
    }

    opts, votes, err := r.pollDetails(ctx, ids)
    if err != nil {
        return nil, err
    }
    for i := range polls {
        polls[i].Options = opts[polls[i].ID]
        if v, ok := votes[polls[i].ID]; ok {
            polls[i].Voters = v
        }
    }
    return polls, nil
}

// GetPollForUpdate locks the poll row for the rest of the transaction.
func (r *DiscussionRepo) GetPollForUpdate(ctx context.Context, eventID, pollID string) (model.Poll, error) {
    p, err := scanPoll(conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, event_id, creator_id, question, ended, created_at FROM polls WHERE id = ? AND event_id = ? FOR UPDATE`,
        pollID, eventID))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Poll{}, model.ErrPollNotFound
    }
    if err != nil {
        return model.Poll{}, err
    }
    opts, votes, err := r.pollDetails(ctx, []string{pollID})
    if err != nil {
        return model.Poll{}, err
    }
    p.Options = opts[pollID]
    if v, ok := votes[pollID]; ok {
        p.Voters = v
    }
    return p, nil
}

func scanPoll(s rowScanner) (model.Poll, error) {
    p := model.Poll{Voters: map[string]int{}}
    err := s.Scan(&p.ID, &p.EventID, &p.CreatorID, &p.Question, &p.Ended, &p.CreatedAt)
    return p, err
}

func (r *DiscussionRepo) pollDetails(ctx context.Context, pollIDs []string) (map[string][]model.PollOption, map[string]map[string]int, error) {
    ph := strings.TrimSuffix(strings.Repeat("?,", len(pollIDs)), ",")
    args := make([]any, len(pollIDs))
    for i, id := range pollIDs {
        args[i] = id
    }

    opts := map[string][]model.PollOption{}
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT poll_id, label, vote_count FROM poll_options WHERE poll_id IN (`+ph+`) ORDER BY poll_id, position`, args...)
    if err != nil {
        return nil, nil, err
    }
    for rows.Next() {
        var (
            id string
            o  model.PollOption
        )
        if err := rows.Scan(&id, &o.Label, &o.Count); err != nil {
            rows.Close()
            return nil, nil, err
        }
        opts[id] = append(opts[id], o)
    }
    rows.Close()
    if err := rows.Err(); err != nil {
        return nil, nil, err
    }

    votes := map[string]map[string]int{}
    rows, err = conn(ctx, r.db).QueryContext(ctx,
        `SELECT poll_id, user_id, position FROM poll_votes WHERE poll_id IN (`+ph+`)`, args...)
    if err != nil {
        return nil, nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var (
            id, user string
            pos      int
        )
        if err := rows.Scan(&id, &user, &pos); err != nil {
            return nil, nil, err
        }
        if votes[id] == nil {
            votes[id] = map[string]int{}
        }
        votes[id][user] = pos
    }
    return opts, votes, rows.Err()
}

// SetVote records or moves userID's vote.  previous is nil for a first
// vote.
func (r *DiscussionRepo) SetVote(ctx context.Context, pollID, userID string, previous *int, option int) error {
    q := conn(ctx, r.db)
    if previous != nil {
        if _, err := q.ExecContext(ctx,
            `UPDATE poll_options SET vote_count = vote_count - 1 WHERE poll_id = ? AND position = ? AND vote_count > 0`,
            pollID, *previous); err != nil {
            return err
        }
        if _, err := q.ExecContext(ctx,
            `UPDATE poll_votes SET position = ? WHERE poll_id = ? AND user_id = ?`, option, pollID, userID); err != nil {
            return err
        }
    } else {
        if _, err := q.ExecContext(ctx,
            `INSERT INTO poll_votes (poll_id, user_id, position) VALUES (?, ?, ?)`, pollID, userID, option); err != nil {
            return err
        }
    }
    _, err := q.ExecContext(ctx,
        `UPDATE poll_options SET vote_count = vote_count + 1 WHERE poll_id = ? AND position = ?`, pollID, option)
    return err
}

func (r *DiscussionRepo) EndPoll(ctx context.Context, pollID string) error {
    _, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE polls SET ended = 1 WHERE id = ?`, pollID)
    return err
}
