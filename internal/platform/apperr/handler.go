package apperr

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Postgres SQLSTATE codes the API translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Reporter receives unexpected errors (for example an error tracker).
type Reporter func(c echo.Context, err error)

// Status maps err to an HTTP status code and a client-safe message.
func Status(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	}

	var ae *Error
	if errors.As(err, &ae) {
		switch {
		case errors.Is(ae.Kind, ErrValidation):
			return http.StatusBadRequest, ae.Msg
		case errors.Is(ae.Kind, ErrConflict):
			return http.StatusConflict, ae.Msg
		case errors.Is(ae.Kind, ErrNotFound):
			return http.StatusNotFound, ae.Msg
		case errors.Is(ae.Kind, ErrForbidden):
			return http.StatusForbidden, ae.Msg
		case errors.Is(ae.Kind, ErrUnauthorized):
			return http.StatusUnauthorized, ae.Msg
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return http.StatusNotFound, "resource not found"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return http.StatusConflict, "resource already exists"
		case pgForeignKeyViolation:
			return http.StatusBadRequest, "referenced resource does not exist"
		case pgCheckViolation:
			return http.StatusBadRequest, "value out of allowed range"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "the operation timed out, please try again"
	}
	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) || isConnectError(err) {
		return http.StatusServiceUnavailable, "the database is unavailable, please try again later"
	}

	return http.StatusInternalServerError, "operation failed"
}

func isConnectError(err error) bool {
	var ce *pgconn.ConnectError
	return errors.As(err, &ce)
}

// HTTPErrorHandler renders errors as {"error": ..., "request_id": ...}. Errors
// that map to a 5xx status are logged with their raw message and passed to the
// optional reporter; the client only sees the fixed message.
func HTTPErrorHandler(logger zerolog.Logger, report Reporter) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := Status(err)
		rid, _ := c.Get("request_id").(string)

		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Int("status", code).
				Msg("request failed")
			if report != nil {
				report(c, err)
			}
		}

		body := map[string]string{"error": msg}
		if rid != "" {
			body["request_id"] = rid
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
