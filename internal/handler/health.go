package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health returns plain "ok" for load balancers.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready checks the database.  It answers 503 while MySQL is unreachable.
func Ready(db Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
    }
}
