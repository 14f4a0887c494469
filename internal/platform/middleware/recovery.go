package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns panics into 500 responses. The panic is logged with its
// stack and forwarded to Sentry when a client is configured.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)
					rid, _ := c.Get(requestIDKey).(string)

					logger.Error().
						Str("request_id", rid).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic recovered")

					hub := sentry.CurrentHub().Clone()
					hub.Scope().SetTag("request_id", rid)
					hub.Scope().SetRequest(c.Request())
					hub.Recover(r)

					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}

// SentryReporter forwards unexpected errors to Sentry. It is a no-op until
// sentry.Init has been called with a DSN.
func SentryReporter(c echo.Context, err error) {
	hub := sentry.CurrentHub().Clone()
	if rid, ok := c.Get(requestIDKey).(string); ok {
		hub.Scope().SetTag("request_id", rid)
	}
	hub.Scope().SetRequest(c.Request())
	hub.CaptureException(err)
}
