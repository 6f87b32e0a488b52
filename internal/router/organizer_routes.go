package router

import "github.com/labstack/echo/v4"

// RegisterOrganizer registers event management endpoints.  Ownership of
// the event is checked by the service layer, not by a role claim.
func RegisterOrganizer(e *echo.Echo, h Handlers, g Guards) {
    api := e.Group("/api", g.Auth)

    api.POST("/events", h.Events.Create)
    api.PATCH("/events/:id", h.Events.Update)
    api.DELETE("/events/:id", h.Events.Delete)
    api.PATCH("/events/:id/tiers/:tierId", h.Events.UpdateTier)
    api.GET("/events/:id/attendees", h.Events.Attendees)
    api.PATCH("/events/:id/chat", h.Discussion.SetChat)
    api.POST("/tickets/:ticketId/validate", h.Tickets.Validate)

    api.GET("/me/dashboard", h.Events.Dashboard)
    api.GET("/creators/me/payment", h.Events.GetPaymentSetup)
    api.PUT("/creators/me/payment", h.Events.SavePaymentSetup)
}
