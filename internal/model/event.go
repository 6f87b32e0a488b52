package model

import "time"

// Event types accepted by the venue validator.
const (
    EventTypePhysical = "physical"
    EventTypeOnline   = "online"
)

// Event statuses.  Only active events are listed publicly.
const (
    EventStatusActive    = "active"
    EventStatusCancelled = "cancelled"
)

// Venue describes where an event happens.  Physical events carry an
// address and optional coordinates; online events carry the platform name
// and the join link.
type Venue struct {
    Address      string   `json:"address,omitempty"`
    Latitude     *float64 `json:"latitude,omitempty"`
    Longitude    *float64 `json:"longitude,omitempty"`
    Platform     string   `json:"platform,omitempty"`
    PlatformLink string   `json:"platformLink,omitempty"`
}

// Event is the root record of the store.  Tiers are loaded with the event;
// attendees are loaded separately because the list can be large.
//
// Fields:
//  ID                   – events.id (uuid).
//  CreatorID            – identity-provider user id of the organizer.
//  EventType            – physical or online.
//  DiscussionRestricted – only attendees and the creator may write.
//  ChatLocked           – only the creator may post messages.
//  AnonymousMode        – messages are stored without a username.
type Event struct {
    ID                   string       `json:"id"`
    CreatorID            string       `json:"creatorId"`
    Title                string       `json:"title"`
    Description          string       `json:"description"`
    HostName             string       `json:"hostName"`
    ImageURL             string       `json:"imageUrl,omitempty"`
    Language             string       `json:"language,omitempty"`
    EventType            string       `json:"eventType"`
    StartsAt             time.Time    `json:"startsAt"`
    EndsAt               time.Time    `json:"endsAt"`
    Venue                Venue        `json:"venue"`
    DiscussionRestricted bool         `json:"discussionRestricted"`
    ChatLocked           bool         `json:"chatLocked"`
    AnonymousMode        bool         `json:"anonymousMode"`
    Status               string       `json:"status"`
    Tiers                []TicketTier `json:"tiers"`
    CreatedAt            time.Time    `json:"createdAt"`
    UpdatedAt            time.Time    `json:"updatedAt"`
}

// IsOnline reports whether the event happens on a meeting platform.
func (e Event) IsOnline() bool { return e.EventType == EventTypeOnline }

// Tier returns the tier with the given id.
func (e Event) Tier(id string) (TicketTier, bool) {
    for _, t := range e.Tiers {
        if t.ID == id {
            return t, true
        }
    }
    return TicketTier{}, false
}

// EventFlags carries the organizer's discussion switches.  Nil fields are
// left unchanged.
type EventFlags struct {
    DiscussionRestricted *bool `json:"discussionRestricted"`
    ChatLocked           *bool `json:"chatLocked"`
    AnonymousMode        *bool `json:"anonymousMode"`
}

// EventFilter narrows the public listing.
type EventFilter struct {
    CreatorID string
    Limit     int
    Offset    int
}

// EventStats is one row of the organizer dashboard.
type EventStats struct {
    EventID      string    `json:"eventId"`
    Title        string    `json:"title"`
    StartsAt     time.Time `json:"startsAt"`
    TicketsSold  int       `json:"ticketsSold"`
    RevenueMinor int64     `json:"revenueMinor"`
}
