package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/logging"
    "github.com/iliyamo/adas-events/internal/middleware"
    "github.com/iliyamo/adas-events/internal/model"
    "github.com/iliyamo/adas-events/internal/utils"
)

type MeetingAccess interface {
    MeetingAccess(ctx context.Context, eventID, userID string) (model.Event, bool, error)
}

// MeetingTokens is implemented by *utils.MeetingSigner.
type MeetingTokens interface {
    Sign(eventID string, u utils.MeetingUser) (utils.AccessToken, error)
}

type MeetingHandler struct {
    access MeetingAccess
    tokens MeetingTokens
    errs   errorResponder
}

// NewMeetingHandler accepts a nil tokens when meetings are not configured;
// the endpoint then answers 503.
func NewMeetingHandler(access MeetingAccess, tokens MeetingTokens, logger *zap.Logger) *MeetingHandler {
    return &MeetingHandler{access: access, tokens: tokens, errs: errorResponder{logger: logging.OrNop(logger).Named("http")}}
}

// Token handles GET /api/events/:id/meeting-token.
func (h *MeetingHandler) Token(c echo.Context) error {
    if h.tokens == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "meetings are not configured", "code": "meeting_unavailable"})
    }
    id := middleware.IdentityFrom(c)
    ev, moderator, err := h.access.MeetingAccess(c.Request().Context(), c.Param("id"), id.UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    tok, err := h.tokens.Sign(ev.ID, utils.MeetingUser{ID: id.UserID, Name: id.Name, Email: id.Email, Moderator: moderator})
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "token":     tok.Token,
        "expiresAt": tok.Exp,
        "room":      utils.MeetingRoom(ev.ID),
        "moderator": moderator,
    })
}
