package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/artifact"
    "github.com/iliyamo/adas-events/internal/collab"
    "github.com/iliyamo/adas-events/internal/model"
    "github.com/iliyamo/adas-events/internal/service"
    "github.com/iliyamo/adas-events/internal/ticketing"
    "github.com/iliyamo/adas-events/internal/transcribe"
)

// errorMapping is the status and machine-readable code for a sentinel.
type errorMapping struct {
    err    error
    status int
    code   string
}

// Order matters only where one sentinel wraps another.
var errorTable = []errorMapping{
    {ticketing.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
    {ticketing.ErrInsufficientInventory, http.StatusConflict, "insufficient_inventory"},
    {ticketing.ErrPurchaseLimitExceeded, http.StatusConflict, "purchase_limit_exceeded"},
    {ticketing.ErrGatewayUnavailable, http.StatusFailedDependency, "gateway_unavailable"},
    {ticketing.ErrVerificationFailed, http.StatusPaymentRequired, "verification_failed"},
    {ticketing.ErrGatewayTimeout, http.StatusGatewayTimeout, "gateway_timeout"},
    {ticketing.ErrGatewayDown, http.StatusServiceUnavailable, "gateway_down"},
    {ticketing.ErrSoldOut, http.StatusConflict, "sold_out_after_payment"},
    {ticketing.ErrPaymentRequired, http.StatusPaymentRequired, "payment_required"},
    {ticketing.ErrFreeTier, http.StatusBadRequest, "free_tier"},
    {ticketing.ErrTicketIDExhausted, http.StatusServiceUnavailable, "ticket_id_exhausted"},
    {artifact.ErrRender, http.StatusInternalServerError, "render_failed"},

    {model.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
    {model.ErrTierNotFound, http.StatusNotFound, "tier_not_found"},
    {model.ErrTicketNotFound, http.StatusNotFound, "ticket_not_found"},
    {model.ErrPollNotFound, http.StatusNotFound, "poll_not_found"},
    {model.ErrPaymentNotFound, http.StatusNotFound, "payment_not_found"},
    {model.ErrForbidden, http.StatusForbidden, "forbidden"},
    {model.ErrAlreadyValidated, http.StatusConflict, "already_validated"},
    {model.ErrQuantityBelowSold, http.StatusConflict, "quantity_below_sold"},
    {model.ErrPaymentsInFlight, http.StatusConflict, "payments_in_flight"},

    {collab.ErrEmptyMessage, http.StatusBadRequest, "empty_message"},
    {collab.ErrMessageTooLong, http.StatusBadRequest, "message_too_long"},
    {collab.ErrInvalidPoll, http.StatusBadRequest, "invalid_poll"},
    {collab.ErrInvalidOption, http.StatusBadRequest, "invalid_option"},
    {collab.ErrChatLocked, http.StatusForbidden, "chat_locked"},
    {collab.ErrPollEnded, http.StatusConflict, "poll_ended"},

    {service.ErrNotOnline, http.StatusBadRequest, "not_online"},

    {transcribe.ErrNotConfigured, http.StatusServiceUnavailable, "transcription_unavailable"},
    {transcribe.ErrTimeout, http.StatusGatewayTimeout, "transcription_timeout"},
    {transcribe.ErrFailed, http.StatusBadGateway, "transcription_failed"},
}

// errorResponder writes domain errors as JSON.  setupURL is attached to
// gateway_unavailable so the organizer can be sent to payment setup.
type errorResponder struct {
    setupURL string
    logger   *zap.Logger
}

func (r errorResponder) respond(c echo.Context, err error) error {
    var ve *service.ValidationError
    if errors.As(err, &ve) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "code": "invalid_input", "field": ve.Field})
    }

    for _, m := range errorTable {
        if !errors.Is(err, m.err) {
            continue
        }
        body := echo.Map{"error": m.err.Error(), "code": m.code}
        switch m.err {
        case ticketing.ErrGatewayUnavailable:
            body["setup_url"] = r.setupURL
        case ticketing.ErrSoldOut:
            var so *ticketing.SoldOutError
            if errors.As(err, &so) {
                if so.CaseID != "" {
                    body["reconciliation_id"] = so.CaseID
                }
                body["reference"] = so.Reference
            }
            body["error"] = "tickets sold out after your payment; a refund case has been opened"
        case ticketing.ErrGatewayTimeout, ticketing.ErrGatewayDown, transcribe.ErrTimeout:
            body["retryable"] = true
        case artifact.ErrRender:
            body["error"] = "the ticket is valid but its document could not be rendered; try downloading again"
        }
        if m.status >= http.StatusInternalServerError {
            r.logger.Error("request failed", zap.String("code", m.code), zap.Error(err))
        }
        return c.JSON(m.status, body)
    }

    r.logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error", "code": "internal"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "bad_request"})
}
