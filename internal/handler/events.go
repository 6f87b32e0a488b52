// Package handler holds the echo handlers.  Handlers bind and check
// request shape, call a service and translate errors to JSON.
package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/logging"
    "github.com/iliyamo/adas-events/internal/middleware"
    "github.com/iliyamo/adas-events/internal/model"
    "github.com/iliyamo/adas-events/internal/service"
)

// EventService is the event management surface used by EventHandler.
type EventService interface {
    Create(ctx context.Context, creatorID string, in service.EventInput) (model.Event, error)
    Get(ctx context.Context, id string) (model.Event, error)
    List(ctx context.Context, f model.EventFilter) ([]model.Event, error)
    Update(ctx context.Context, eventID, userID string, p service.EventPatch) (model.Event, error)
    Delete(ctx context.Context, eventID, userID string) error
    UpdateTier(ctx context.Context, eventID, tierID, userID string, p service.TierPatch) (model.TicketTier, error)
    Attendees(ctx context.Context, eventID, userID string) ([]model.Attendee, error)
    Dashboard(ctx context.Context, userID string) (service.Dashboard, error)
    PaymentSetup(ctx context.Context, userID string) (service.SetupStatus, error)
    SavePaymentSetup(ctx context.Context, userID, publicKey, secretKey string) (service.SetupStatus, error)
}

// EventHandler serves event CRUD, the organizer dashboard and payment
// setup.
type EventHandler struct {
    events EventService
    errs   errorResponder
}

func NewEventHandler(events EventService, setupURL string, logger *zap.Logger) *EventHandler {
    if events == nil {
        panic("nil event service passed to NewEventHandler")
    }
    return &EventHandler{
        events: events,
        errs:   errorResponder{setupURL: setupURL, logger: logging.OrNop(logger).Named("http")},
    }
}

// Create handles POST /api/events.
func (h *EventHandler) Create(c echo.Context) error {
    id := middleware.IdentityFrom(c)
    var in service.EventInput
    if err := c.Bind(&in); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    ev, err := h.events.Create(c.Request().Context(), id.UserID, in)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusCreated, ev)
}

// List handles GET /api/events with optional creator, limit and offset.
func (h *EventHandler) List(c echo.Context) error {
    f := model.EventFilter{CreatorID: c.QueryParam("creator")}
    var err error
    if f.Limit, err = queryInt(c, "limit"); err != nil {
        return badRequest(c, "limit must be a number")
    }
    if f.Offset, err = queryInt(c, "offset"); err != nil {
        return badRequest(c, "offset must be a number")
    }
    events, err := h.events.List(c.Request().Context(), f)
    if err != nil {
        return h.errs.respond(c, err)
    }
    if events == nil {
        events = []model.Event{}
    }
    return c.JSON(http.StatusOK, echo.Map{"events": events})
}

func (h *EventHandler) Get(c echo.Context) error {
    ev, err := h.events.Get(c.Request().Context(), c.Param("id"))
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) Update(c echo.Context) error {
    var p service.EventPatch
    if err := c.Bind(&p); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    ev, err := h.events.Update(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c).UserID, p)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) Delete(c echo.Context) error {
    if err := h.events.Delete(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c).UserID); err != nil {
        return h.errs.respond(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// UpdateTier handles PATCH /api/events/:id/tiers/:tierId.
func (h *EventHandler) UpdateTier(c echo.Context) error {
    var p service.TierPatch
    if err := c.Bind(&p); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    tier, err := h.events.UpdateTier(c.Request().Context(), c.Param("id"), c.Param("tierId"), middleware.IdentityFrom(c).UserID, p)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, tier)
}

func (h *EventHandler) Attendees(c echo.Context) error {
    list, err := h.events.Attendees(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    if list == nil {
        list = []model.Attendee{}
    }
    return c.JSON(http.StatusOK, echo.Map{"attendees": list, "count": len(list)})
}

// Dashboard handles GET /api/me/dashboard.
func (h *EventHandler) Dashboard(c echo.Context) error {
    d, err := h.events.Dashboard(c.Request().Context(), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, d)
}

func (h *EventHandler) GetPaymentSetup(c echo.Context) error {
    st, err := h.events.PaymentSetup(c.Request().Context(), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, st)
}

type paymentSetupRequest struct {
    PublicKey string `json:"publicKey"`
    SecretKey string `json:"secretKey"`
}

// SavePaymentSetup handles PUT /api/creators/me/payment.
func (h *EventHandler) SavePaymentSetup(c echo.Context) error {
    var req paymentSetupRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    st, err := h.events.SavePaymentSetup(c.Request().Context(), middleware.IdentityFrom(c).UserID, req.PublicKey, req.SecretKey)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, st)
}

// queryInt parses an optional integer query parameter; absent is 0.
func queryInt(c echo.Context, name string) (int, error) {
    v := c.QueryParam(name)
    if v == "" {
        return 0, nil
    }
    n, err := strconv.Atoi(v)
    if err != nil || n < 0 {
        return 0, strconv.ErrSyntax
    }
    return n, nil
}
