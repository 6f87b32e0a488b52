package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/logging"
)

// RequestLogger writes one structured line per request.  Server errors
// log at Error, client errors at Warn.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
    logger = logging.OrNop(logger).Named("http")
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            req, res := c.Request(), c.Response()
            fields := []zap.Field{
                zap.String("method", req.Method),
                zap.String("path", c.Path()),
                zap.String("uri", req.RequestURI),
                zap.Int("status", res.Status),
                zap.Int64("bytes", res.Size),
                zap.Duration("latency", time.Since(start)),
                zap.String("ip", c.RealIP()),
                zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
            }
            if id := IdentityFrom(c); !id.Anonymous() {
                fields = append(fields, zap.String("user_id", id.UserID))
            }
            if err != nil {
                fields = append(fields, zap.Error(err))
            }
            switch {
            case res.Status >= 500:
                logger.Error("request", fields...)
            case res.Status >= 400:
                logger.Warn("request", fields...)
            default:
                logger.Info("request", fields...)
            }
            return nil
        }
    }
}
