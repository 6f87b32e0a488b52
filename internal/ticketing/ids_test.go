package ticketing

import (
	"bytes"
	"strings"
	"testing"
)

func TestRandomIDsShape(t *testing.T) {
	t.Parallel()

	g := RandomIDs{SuffixLen: 9}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id, err := g.NewTicketID("ev42")
		if err != nil {
			t.Fatalf("NewTicketID: %v", err)
		}
		suffix, ok := strings.CutPrefix(id, "ev42-")
		if !ok || len(suffix) != 9 {
			t.Fatalf("bad id %q", id)
		}
		for _, r := range suffix {
			if !strings.ContainsRune(base36, r) {
				t.Fatalf("non base36 rune %q in %q", r, id)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestRandomIDsSkipsBiasedBytes(t *testing.T) {
	t.Parallel()

	// 0xFF is rejected, 0 maps to '0', 37 maps to '1'.
	src := bytes.NewReader([]byte{0xFF, 0, 37, 0xFC, 35, 0, 0})
	id, err := RandomIDs{SuffixLen: 3, Rand: src}.NewTicketID("e")
	if err != nil {
		t.Fatalf("NewTicketID: %v", err)
	}
	if id != "e-01Z" {
		t.Fatalf("id = %q, want e-01Z", id)
	}
}

func TestNewReferenceUnique(t *testing.T) {
	t.Parallel()

	a, b := NewReference(), NewReference()
	if a == b || !strings.HasPrefix(a, "adas_") || strings.Contains(a, "-") {
		t.Fatalf("unexpected references %q %q", a, b)
	}
}
