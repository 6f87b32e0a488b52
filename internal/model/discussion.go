package model

import "time"

// Message is a discussion post scoped to an event.  Username is empty when
// the event was in anonymous mode at posting time.
type Message struct {
    ID        string    `json:"id"`
    EventID   string    `json:"eventId"`
    UserID    string    `json:"userId"`
    Username  string    `json:"username"`
    Body      string    `json:"body"`
    CreatedAt time.Time `json:"createdAt"`
}

// PollOption is a choice with its running tally.
type PollOption struct {
    Label string `json:"option"`
    Count int    `json:"count"`
}

// Poll belongs to an event.  Voters maps user id to the index of the
// option they chose; a user holds at most one vote.
type Poll struct {
    ID        string         `json:"id"`
    EventID   string         `json:"eventId"`
    CreatorID string         `json:"creatorId"`
    Question  string         `json:"question"`
    Options   []PollOption   `json:"options"`
    Voters    map[string]int `json:"voters"`
    Ended     bool           `json:"ended"`
    CreatedAt time.Time      `json:"createdAt"`
}
