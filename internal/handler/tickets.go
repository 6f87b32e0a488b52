package handler

import (
    "context"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/artifact"
    "github.com/iliyamo/adas-events/internal/logging"
    "github.com/iliyamo/adas-events/internal/middleware"
    "github.com/iliyamo/adas-events/internal/model"
)

type TicketService interface {
    MyTickets(ctx context.Context, userID string) ([]model.Attendee, error)
    Ticket(ctx context.Context, ticketID, userID string) (artifact.Ticket, error)
    Validate(ctx context.Context, code, userID string) (model.Attendee, error)
}

// TicketHandler serves the ticket record, its artifacts and check-in.
type TicketHandler struct {
    tickets TicketService
    errs    errorResponder
}

func NewTicketHandler(tickets TicketService, logger *zap.Logger) *TicketHandler {
    if tickets == nil {
        panic("nil ticket service passed to NewTicketHandler")
    }
    return &TicketHandler{tickets: tickets, errs: errorResponder{logger: logging.OrNop(logger).Named("http")}}
}

// Mine handles GET /api/me/tickets.
func (h *TicketHandler) Mine(c echo.Context) error {
    list, err := h.tickets.MyTickets(c.Request().Context(), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    if list == nil {
        list = []model.Attendee{}
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": list})
}

type ticketResponse struct {
    model.Attendee
    Status     model.TicketStatus `json:"status"`
    EventTitle string             `json:"eventTitle"`
    TierName   string             `json:"ticketType"`
    Event      model.Event        `json:"event"`
}

func (h *TicketHandler) Get(c echo.Context) error {
    t, err := h.tickets.Ticket(c.Request().Context(), c.Param("ticketId"), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, ticketResponse{
        Attendee:   t.Attendee,
        Status:     t.Attendee.Status(),
        EventTitle: t.Event.Title,
        TierName:   t.TierName,
        Event:      t.Event,
    })
}

// PDF handles GET /api/tickets/:ticketId/pdf.  A render failure leaves the
// ticket intact; the client may simply retry.
func (h *TicketHandler) PDF(c echo.Context) error {
    t, err := h.tickets.Ticket(c.Request().Context(), c.Param("ticketId"), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    art, err := artifact.Render(t)
    if err != nil {
        return h.errs.respond(c, err)
    }
    c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="ticket-`+t.Attendee.TicketID+`.pdf"`)
    return c.Blob(http.StatusOK, "application/pdf", art.PDF)
}

func (h *TicketHandler) QR(c echo.Context) error {
    t, err := h.tickets.Ticket(c.Request().Context(), c.Param("ticketId"), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    png, err := artifact.QRCode(t.Attendee)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.Blob(http.StatusOK, "image/png", png)
}

type validateRequest struct {
    Code string `json:"code"`
}

// Validate handles POST /api/tickets/:ticketId/validate.  Scanners may
// post the raw QR payload as code; otherwise the path id is used.
func (h *TicketHandler) Validate(c echo.Context) error {
    var req validateRequest
    _ = c.Bind(&req)
    code := strings.TrimSpace(req.Code)
    if code == "" {
        code = c.Param("ticketId")
    }
    a, err := h.tickets.Validate(c.Request().Context(), code, middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"valid": true, "ticket": a, "status": a.Status()})
}
