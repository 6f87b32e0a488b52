package router

import "github.com/labstack/echo/v4"

// RegisterAttendee registers buyer and participant endpoints.  All of them
// need a token; access to a particular event is decided by the services.
func RegisterAttendee(e *echo.Echo, h Handlers, g Guards) {
    api := e.Group("/api", g.Auth)

    // payment and transcription hit paid third parties
    api.POST("/initiate-payment", h.Checkout.InitiatePayment, g.RateLimit)
    api.POST("/verify-payment", h.Checkout.VerifyPayment, g.RateLimit)
    api.POST("/summarize", h.Summarize.Summarize, g.RateLimit)

    api.POST("/events/:id/register", h.Checkout.Register)

    api.GET("/me/tickets", h.Tickets.Mine)
    api.GET("/tickets/:ticketId", h.Tickets.Get)
    api.GET("/tickets/:ticketId/pdf", h.Tickets.PDF)
    api.GET("/tickets/:ticketId/qr", h.Tickets.QR)

    api.GET("/events/:id/discussion", h.Discussion.Messages)
    api.POST("/events/:id/discussion", h.Discussion.Post)
    api.GET("/events/:id/discussion/stream", h.Discussion.StreamMessages)
    api.GET("/events/:id/polls", h.Discussion.Polls)
    api.POST("/events/:id/polls", h.Discussion.CreatePoll)
    api.GET("/events/:id/polls/stream", h.Discussion.StreamPolls)
    api.POST("/events/:id/polls/:pollId/vote", h.Discussion.Vote)
    api.POST("/events/:id/polls/:pollId/end", h.Discussion.EndPoll)

    api.GET("/events/:id/meeting-token", h.Meeting.Token)
}
