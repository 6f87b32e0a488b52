package handler

import (
    "context"
    "net/http"
    "net/url"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/logging"
    "github.com/iliyamo/adas-events/internal/middleware"
    "github.com/iliyamo/adas-events/internal/model"
    "github.com/iliyamo/adas-events/internal/ticketing"
)

// CheckoutService is implemented by *ticketing.Checkout.
type CheckoutService interface {
    CreateTransaction(ctx context.Context, in ticketing.PurchaseInput) (ticketing.CheckoutSession, error)
    VerifyTransaction(ctx context.Context, reference string) (ticketing.Verified, error)
    RegisterFree(ctx context.Context, in ticketing.PurchaseInput) (ticketing.Issued, error)
}

type CheckoutHandler struct {
    checkout CheckoutService
    logger   *zap.Logger
    errs     errorResponder
}

// NewCheckoutHandler wires the purchase endpoints.  setupURL is returned
// to buyers when the organizer has not finished payment setup.
func NewCheckoutHandler(checkout CheckoutService, setupURL string, logger *zap.Logger) *CheckoutHandler {
    if checkout == nil {
        panic("nil checkout passed to NewCheckoutHandler")
    }
    logger = logging.OrNop(logger).Named("http")
    return &CheckoutHandler{checkout: checkout, logger: logger, errs: errorResponder{setupURL: setupURL, logger: logger}}
}

// purchaseRequest is the buyer form.  ticketId names the tier, as the
// event page calls tiers "tickets".
type purchaseRequest struct {
    EventID  string `json:"eventId"`
    TierID   string `json:"ticketId"`
    Quantity *int   `json:"quantity"`
    FullName string `json:"fullName"`
    Email    string `json:"email"`
    Phone    string `json:"phone"`
}

func (r purchaseRequest) input(id middleware.Identity) ticketing.PurchaseInput {
    qty := 1
    if r.Quantity != nil {
        qty = *r.Quantity
    }
    email := strings.TrimSpace(r.Email)
    if email == "" {
        email = id.Email
    }
    name := strings.TrimSpace(r.FullName)
    if name == "" {
        name = id.Name
    }
    return ticketing.PurchaseInput{
        EventID:  strings.TrimSpace(r.EventID),
        TierID:   strings.TrimSpace(r.TierID),
        Quantity: qty,
        Holder: ticketing.Holder{
            UserID:   id.UserID,
            FullName: name,
            Email:    email,
            Phone:    strings.TrimSpace(r.Phone),
        },
    }
}

// InitiatePayment handles POST /api/initiate-payment.
func (h *CheckoutHandler) InitiatePayment(c echo.Context) error {
    var req purchaseRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    if req.EventID == "" || req.TierID == "" {
        return badRequest(c, "eventId and ticketId are required")
    }
    in := req.input(middleware.IdentityFrom(c))
    if in.Holder.Email == "" {
        return badRequest(c, "email is required")
    }
    sess, err := h.checkout.CreateTransaction(c.Request().Context(), in)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, sess)
}

type verifyRequest struct {
    Reference string `json:"reference"`
}

// VerifyPayment handles POST /api/verify-payment.  Only the buyer who
// opened the payment sees the ticket it produced.
func (h *CheckoutHandler) VerifyPayment(c echo.Context) error {
    var req verifyRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    if strings.TrimSpace(req.Reference) == "" {
        return badRequest(c, "reference is required")
    }
    v, err := h.checkout.VerifyTransaction(c.Request().Context(), req.Reference)
    if err != nil {
        return h.errs.respond(c, err)
    }
    if v.Payment.BuyerID != "" && v.Payment.BuyerID != middleware.IdentityFrom(c).UserID {
        return h.errs.respond(c, model.ErrForbidden)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "success":       true,
        "ticketId":      v.Attendee.TicketID,
        "ticketPageUrl": TicketPageURL(v.Attendee.Reference(), v.Attendee.TicketID),
    })
}

// Register handles POST /api/events/:id/register for free tiers.
func (h *CheckoutHandler) Register(c echo.Context) error {
    var req purchaseRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    req.EventID = c.Param("id")
    if req.TierID == "" {
        return badRequest(c, "ticketId is required")
    }
    res, err := h.checkout.RegisterFree(c.Request().Context(), req.input(middleware.IdentityFrom(c)))
    if err != nil {
        return h.errs.respond(c, err)
    }
    status := http.StatusCreated
    if !res.Created {
        status = http.StatusOK
    }
    return c.JSON(status, echo.Map{
        "success":       true,
        "ticketId":      res.Attendee.TicketID,
        "ticketPageUrl": TicketPageURL("", res.Attendee.TicketID),
        "attendee":      res.Attendee,
    })
}

// TicketPageURL is the client route showing a ticket.
func TicketPageURL(orderID, ticketID string) string {
    q := url.Values{}
    if orderID != "" {
        q.Set("orderId", orderID)
    }
    q.Set("ticketId", ticketID)
    return "/ticket?" + q.Encode()
}
