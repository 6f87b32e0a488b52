// Package artifact renders the downloadable proof of a ticket: a QR code
// that door staff scan and a one-page PDF carrying it.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/iliyamo/adas-events/internal/model"
)

// ErrRender means the artifact could not be produced.  The ticket itself
// is unaffected and can be re-rendered later.
var ErrRender = errors.New("ticket artifact could not be rendered")

const (
	qrSize     = 320
	timeLayout = "Mon, 02 Jan 2006 15:04 MST"
)

// Ticket is everything printed on the artifact.
type Ticket struct {
	Attendee model.Attendee
	Event    model.Event
	TierName string
}

type Artifact struct {
	Payload string
	QR      []byte // PNG
	PDF     []byte
}

type payload struct {
	EventID  string `json:"eventId"`
	TicketID string `json:"ticketId"`
}

// Payload is the string encoded in the QR code.  Check-in resolves it back
// to the attendee.
func Payload(eventID, ticketID string) (string, error) {
	if eventID == "" || ticketID == "" {
		return "", fmt.Errorf("%w: missing event or ticket id", ErrRender)
	}
	b, err := json.Marshal(payload{EventID: eventID, TicketID: ticketID})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	return string(b), nil
}

// ParsePayload reverses Payload.
func ParsePayload(s string) (eventID, ticketID string, err error) {
	var p payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return "", "", err
	}
	if p.EventID == "" || p.TicketID == "" {
		return "", "", errors.New("payload missing event or ticket id")
	}
	return p.EventID, p.TicketID, nil
}

// QRCode encodes the ticket payload as a PNG.
func QRCode(a model.Attendee) ([]byte, error) {
	p, err := Payload(a.EventID, a.TicketID)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(p, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("%w: qr: %v", ErrRender, err)
	}
	return png, nil
}

// Render produces the QR code and PDF.  Output depends only on t: the PDF
// dates are pinned to the purchase time.
func Render(t Ticket) (Artifact, error) {
	a := t.Attendee
	p, err := Payload(a.EventID, a.TicketID)
	if err != nil {
		return Artifact{}, err
	}
	png, err := QRCode(a)
	if err != nil {
		return Artifact{}, err
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetCreationDate(a.PurchasedAt)
	pdf.SetModificationDate(a.PurchasedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Event Ticket", true)
	pdf.SetAuthor("ADAS", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Event Ticket", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 7, tr(t.Event.Title), "", "C", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range rows(t) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(35, 7, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 7, tr(row[1]), "", "L", false)
	}

	pdf.RegisterImageOptionsReader("ticket-qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	const side = 60.0
	pdf.Ln(4)
	pdf.ImageOptions("ticket-qr", (pageW-side)/2, pdf.GetY(), side, side, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.SetY(pdf.GetY() + side + 4)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 5, "Present this code at the entrance.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Artifact{}, fmt.Errorf("%w: pdf: %v", ErrRender, err)
	}
	return Artifact{Payload: p, QR: png, PDF: buf.Bytes()}, nil
}

func rows(t Ticket) [][2]string {
	a, e := t.Attendee, t.Event
	order := a.Reference()
	if order == "" {
		order = "Free registration"
	}
	return [][2]string{
		{"Ticket ID", a.TicketID},
		{"Name", a.FullName},
		{"Email", a.Email},
		{"Phone", a.Phone},
		{"Ticket type", t.TierName},
		{"Quantity", strconv.Itoa(a.Quantity)},
		{"Order", order},
		{"Starts", formatTime(e.StartsAt)},
		{"Ends", formatTime(e.EndsAt)},
		{"Venue", venue(e)},
		{"Host", e.HostName},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func venue(e model.Event) string {
	if e.IsOnline() {
		if e.Venue.Platform == "" {
			return "Online"
		}
		return "Online on " + e.Venue.Platform
	}
	if e.Venue.Address == "" {
		return "-"
	}
	return e.Venue.Address
}
