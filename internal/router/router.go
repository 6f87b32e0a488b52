// Package router mounts the HTTP handlers on echo.  Routes are grouped by
// audience: public browsing, signed-in attendees and event organizers.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/adas-events/internal/handler"
)

// Handlers is everything the router mounts.
type Handlers struct {
    Events     *handler.EventHandler
    Tickets    *handler.TicketHandler
    Checkout   *handler.CheckoutHandler
    Discussion *handler.DiscussionHandler
    Summarize  *handler.SummarizeHandler
    Meeting    *handler.MeetingHandler
    DB         handler.Pinger
}

// Guards are the route-level middleware.  Auth rejects anonymous callers,
// Optional reads a token when present, RateLimit protects the payment and
// transcription routes and Cache serves public reads from Redis.
type Guards struct {
    Auth      echo.MiddlewareFunc
    Optional  echo.MiddlewareFunc
    RateLimit echo.MiddlewareFunc
    Cache     echo.MiddlewareFunc
}

// Register mounts every route.
func Register(e *echo.Echo, h Handlers, g Guards) {
    RegisterRoutes(e, h.DB)
    RegisterPublic(e, h.Events, g)
    RegisterAttendee(e, h, g)
    RegisterOrganizer(e, h, g)
}

// RegisterRoutes exposes the probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
    e.GET("/healthz", handler.Health)
    if db != nil {
        e.GET("/readyz", handler.Ready(db))
    }
}

// RegisterPublic registers browse endpoints.  OptionalAuth runs first so
// the cache can tell signed-in callers apart.
func RegisterPublic(e *echo.Echo, h *handler.EventHandler, g Guards) {
    e.GET("/api/events", h.List, g.Optional, g.Cache)
    e.GET("/api/events/:id", h.Get, g.Optional, g.Cache)
}
