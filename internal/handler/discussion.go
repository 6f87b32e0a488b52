package handler

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/collab"
    "github.com/iliyamo/adas-events/internal/feed"
    "github.com/iliyamo/adas-events/internal/logging"
    "github.com/iliyamo/adas-events/internal/middleware"
    "github.com/iliyamo/adas-events/internal/model"
)

const sseHeartbeat = 25 * time.Second

// DiscussionService is implemented by *collab.Service.
type DiscussionService interface {
    Post(ctx context.Context, eventID string, author collab.Author, body string) (model.Message, error)
    Messages(ctx context.Context, eventID, userID string, limit int) ([]model.Message, error)
    SetFlags(ctx context.Context, eventID, userID string, flags model.EventFlags) (model.Event, error)
    CreatePoll(ctx context.Context, eventID string, author collab.Author, question string, options []string) (model.Poll, error)
    Polls(ctx context.Context, eventID, userID string) ([]model.Poll, error)
    Vote(ctx context.Context, eventID, pollID, userID string, option int) (model.Poll, error)
    EndPoll(ctx context.Context, eventID, pollID, userID string) (model.Poll, error)
}

// Subscriber streams snapshots; *feed.Feed implements it.
type Subscriber interface {
    Subscribe(ctx context.Context, eventID, topic string, load feed.Loader) (<-chan any, error)
}

type DiscussionHandler struct {
    svc    DiscussionService
    feed   Subscriber
    logger *zap.Logger
    errs   errorResponder
}

func NewDiscussionHandler(svc DiscussionService, sub Subscriber, logger *zap.Logger) *DiscussionHandler {
    if svc == nil || sub == nil {
        panic("nil dependency passed to NewDiscussionHandler")
    }
    logger = logging.OrNop(logger).Named("http")
    return &DiscussionHandler{svc: svc, feed: sub, logger: logger, errs: errorResponder{logger: logger}}
}

func author(c echo.Context) collab.Author {
    id := middleware.IdentityFrom(c)
    return collab.Author{UserID: id.UserID, Name: id.Name}
}

// Messages handles GET /api/events/:id/discussion.
func (h *DiscussionHandler) Messages(c echo.Context) error {
    limit, err := queryInt(c, "limit")
    if err != nil {
        return badRequest(c, "limit must be a number")
    }
    msgs, err := h.svc.Messages(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c).UserID, limit)
    if err != nil {
        return h.errs.respond(c, err)
    }
    if msgs == nil {
        msgs = []model.Message{}
    }
    return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

type postRequest struct {
    Text string `json:"text"`
}

func (h *DiscussionHandler) Post(c echo.Context) error {
    var req postRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    m, err := h.svc.Post(c.Request().Context(), c.Param("id"), author(c), req.Text)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusCreated, m)
}

// SetChat handles PATCH /api/events/:id/chat.
func (h *DiscussionHandler) SetChat(c echo.Context) error {
    var flags model.EventFlags
    if err := c.Bind(&flags); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    ev, err := h.svc.SetFlags(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c).UserID, flags)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "chatLocked":           ev.ChatLocked,
        "anonymousMode":        ev.AnonymousMode,
        "discussionRestricted": ev.DiscussionRestricted,
    })
}

type pollRequest struct {
    Question string   `json:"question"`
    Options  []string `json:"options"`
}

func (h *DiscussionHandler) CreatePoll(c echo.Context) error {
    var req pollRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    p, err := h.svc.CreatePoll(c.Request().Context(), c.Param("id"), author(c), req.Question, req.Options)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusCreated, p)
}

func (h *DiscussionHandler) Polls(c echo.Context) error {
    polls, err := h.svc.Polls(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    if polls == nil {
        polls = []model.Poll{}
    }
    return c.JSON(http.StatusOK, echo.Map{"polls": polls})
}

type voteRequest struct {
    Option *int `json:"option"`
}

func (h *DiscussionHandler) Vote(c echo.Context) error {
    var req voteRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid JSON body")
    }
    if req.Option == nil {
        return badRequest(c, "option is required")
    }
    p, err := h.svc.Vote(c.Request().Context(), c.Param("id"), c.Param("pollId"), middleware.IdentityFrom(c).UserID, *req.Option)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

func (h *DiscussionHandler) EndPoll(c echo.Context) error {
    p, err := h.svc.EndPoll(c.Request().Context(), c.Param("id"), c.Param("pollId"), middleware.IdentityFrom(c).UserID)
    if err != nil {
        return h.errs.respond(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

// StreamMessages handles GET /api/events/:id/discussion/stream.
func (h *DiscussionHandler) StreamMessages(c echo.Context) error {
    eventID, userID := c.Param("id"), middleware.IdentityFrom(c).UserID
    return h.stream(c, feed.TopicDiscussion, func(ctx context.Context) (any, error) {
        msgs, err := h.svc.Messages(ctx, eventID, userID, 0)
        if err != nil {
            return nil, err
        }
        return echo.Map{"messages": msgs}, nil
    })
}

// StreamPolls handles GET /api/events/:id/polls/stream.
func (h *DiscussionHandler) StreamPolls(c echo.Context) error {
    eventID, userID := c.Param("id"), middleware.IdentityFrom(c).UserID
    return h.stream(c, feed.TopicPolls, func(ctx context.Context) (any, error) {
        polls, err := h.svc.Polls(ctx, eventID, userID)
        if err != nil {
            return nil, err
        }
        return echo.Map{"polls": polls}, nil
    })
}

// stream writes snapshots as server-sent events until the client goes
// away.  The first load runs before headers are sent so access errors
// still get a normal JSON response.
func (h *DiscussionHandler) stream(c echo.Context, topic string, load feed.Loader) error {
    ctx, cancel := context.WithCancel(c.Request().Context())
    defer cancel()

    if _, err := load(ctx); err != nil {
        return h.errs.respond(c, err)
    }
    snaps, err := h.feed.Subscribe(ctx, c.Param("id"), topic, load)
    if err != nil {
        return h.errs.respond(c, err)
    }

    res := c.Response()
    res.Header().Set(echo.HeaderContentType, "text/event-stream")
    res.Header().Set(echo.HeaderCacheControl, "no-cache")
    res.Header().Set(echo.HeaderConnection, "keep-alive")
    res.Header().Set("X-Accel-Buffering", "no")
    res.WriteHeader(http.StatusOK)
    res.Flush()

    beat := time.NewTicker(sseHeartbeat)
    defer beat.Stop()
    for {
        select {
        case <-ctx.Done():
            return nil
        case <-beat.C:
            if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
                return nil
            }
            res.Flush()
        case snap, ok := <-snaps:
            if !ok {
                return nil
            }
            b, err := json.Marshal(snap)
            if err != nil {
                h.logger.Warn("encode snapshot", zap.Error(err))
                continue
            }
            if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", topic, b); err != nil {
                return nil
            }
            res.Flush()
        }
    }
}
