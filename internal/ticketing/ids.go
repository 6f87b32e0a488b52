package ticketing

import (
	"crypto/rand"
	"io"
	"strings"

	"github.com/google/uuid"
)

// DefaultSuffixLen is the number of base36 characters after the event id.
const DefaultSuffixLen = 12

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// IDGenerator produces candidate ticket ids.  Uniqueness is enforced by
// the store; the writer re-rolls on collision.
type IDGenerator interface {
	NewTicketID(eventID string) (string, error)
}

// RandomIDs draws suffixes from crypto/rand.  Rand may be replaced in
// tests.
type RandomIDs struct {
	SuffixLen int
	Rand      io.Reader
}

func (g RandomIDs) NewTicketID(eventID string) (string, error) {
	n := g.SuffixLen
	if n <= 0 {
		n = DefaultSuffixLen
	}
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 252 is the largest multiple of 36 below 256; skipping the
			// tail keeps the distribution uniform.
			if b >= 252 {
				continue
			}
			out = append(out, base36[b%36])
			if len(out) == n {
				break
			}
		}
	}
	return eventID + "-" + string(out), nil
}

// NewReference returns a fresh gateway transaction reference.
func NewReference() string {
	return "adas_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
