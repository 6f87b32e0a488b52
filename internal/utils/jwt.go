// Package utils holds token helpers shared by the server and the dev
// token command.
package utils

import (
    "crypto/rsa"
    "errors"
    "fmt"
    "os"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// NewAccessToken builds and signs an HS256 JWT in the shape the identity
// provider issues: sub is the user id, plus email and name.  The server
// only verifies these tokens; this constructor serves local tooling and
// tests.
func NewAccessToken(secret, userID, email, name string, ttl time.Duration) (AccessToken, error) {
    if secret == "" || userID == "" {
        return AccessToken{}, errors.New("secret and user id are required")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":   userID,
        "email": email,
        "name":  name,
        "exp":   exp.Unix(),
        "iat":   now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// Meeting tokens follow the Jitsi as a Service claim layout.
const (
    meetingAudience = "jitsi"
    meetingSubject  = "8x8.vc"
    meetingTTL      = time.Hour
)

// MeetingRoom is the room name shared by every attendee of an event.
func MeetingRoom(eventID string) string { return "adas-event-" + eventID }

// MeetingUser is shown inside the meeting.  Moderators can mute and
// remove participants.
type MeetingUser struct {
    ID        string
    Name      string
    Email     string
    Moderator bool
}

// MeetingSigner issues RS256 room tokens.
type MeetingSigner struct {
    key   *rsa.PrivateKey
    appID string
    keyID string
    now   func() time.Time
}

// NewMeetingSigner loads a PEM private key from path.  keyID, when set,
// is sent as the kid header.
func NewMeetingSigner(path, appID, keyID string) (*MeetingSigner, error) {
    key, err := LoadRSAPrivateKey(path)
    if err != nil {
        return nil, err
    }
    return NewMeetingSignerFromKey(key, appID, keyID), nil
}

func NewMeetingSignerFromKey(key *rsa.PrivateKey, appID, keyID string) *MeetingSigner {
    return &MeetingSigner{key: key, appID: appID, keyID: keyID, now: time.Now}
}

// LoadRSAPrivateKey reads a PKCS#1 or PKCS#8 PEM file.
func LoadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
    raw, err := os.ReadFile(path)
    if err != nil {
        return nil, fmt.Errorf("read meeting key: %w", err)
    }
    key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
    if err != nil {
        return nil, fmt.Errorf("parse meeting key: %w", err)
    }
    return key, nil
}

// Sign returns a one-hour token for the event's room.
func (s *MeetingSigner) Sign(eventID string, u MeetingUser) (AccessToken, error) {
    now := s.now().UTC()
    exp := now.Add(meetingTTL)
    claims := jwt.MapClaims{
        "aud":  meetingAudience,
        "iss":  s.appID,
        "sub":  meetingSubject,
        "room": MeetingRoom(eventID),
        "iat":  now.Unix(),
        "nbf":  now.Add(-10 * time.Second).Unix(),
        "exp":  exp.Unix(),
        "context": map[string]any{
            "user": map[string]any{
                "id":        u.ID,
                "name":      u.Name,
                "email":     u.Email,
                "moderator": u.Moderator,
            },
        },
    }
    tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
    if s.keyID != "" {
        tok.Header["kid"] = s.keyID
    }
    signed, err := tok.SignedString(s.key)
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
